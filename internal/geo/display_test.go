package geo

import "testing"

func TestMergePlaceFieldIndependent(t *testing.T) {
	d := NewDisplayState()
	d.Region = "Bavaria"
	d.Country = "Germany"

	d.MergePlace(Place{City: "Munich"})

	if d.City != "Munich" {
		t.Fatalf("city not merged: %q", d.City)
	}
	if d.Region != "Bavaria" || d.Country != "Germany" {
		t.Fatalf("empty fields overwrote prior values: region=%q country=%q", d.Region, d.Country)
	}
}

func TestMergePlaceNeverResetsToEmpty(t *testing.T) {
	d := NewDisplayState()
	d.City = "Lagos"
	d.MergePlace(Place{})
	if d.City != "Lagos" {
		t.Fatalf("empty merge reset city: %q", d.City)
	}
}

func TestMergeLookupNonEmptyWins(t *testing.T) {
	d := NewDisplayState()
	d.MergeLookup("8.8.8.8", "United States", "", "Mountain View", "Google LLC", "")
	if d.IP != "8.8.8.8" || d.City != "Mountain View" || d.ISP != "Google LLC" {
		t.Fatalf("lookup fields not merged: %+v", d)
	}
	if d.Region != Unknown || d.Timezone != Unknown {
		t.Fatalf("empty lookup fields should keep Unknown: region=%q tz=%q", d.Region, d.Timezone)
	}
}

func TestFormatCoords(t *testing.T) {
	got := FormatCoords(37.4056, -122.0775)
	want := "37.405600, -122.077500"
	if got != want {
		t.Fatalf("coords format: got %q want %q", got, want)
	}
}

func TestSetCoords(t *testing.T) {
	d := NewDisplayState()
	d.SetCoords(1.5, 2.5, 12)
	if d.Coords != "1.500000, 2.500000" {
		t.Fatalf("coords: %q", d.Coords)
	}
	if !d.HasAccuracy || d.AccuracyM != 12 {
		t.Fatalf("accuracy not recorded: %+v", d)
	}
}

func TestNewSampleClampsAccuracy(t *testing.T) {
	s := NewSample(1, 2, -5, SourceGPS)
	if s.Accuracy != 0 {
		t.Fatalf("negative accuracy not clamped: %f", s.Accuracy)
	}
	if s.Source.String() != "gps" {
		t.Fatalf("source string: %q", s.Source.String())
	}
}
