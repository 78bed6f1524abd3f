package display

import "sync"

// State：快照展示面的可序列化状态
type State struct {
	Fields       map[string]string `json:"fields"`
	AccuracyM    float64           `json:"accuracy_m"`
	ShowAccuracy bool              `json:"show_accuracy"`
	Error        string            `json:"error,omitempty"`
	Loading      bool              `json:"loading"`
	StartEnabled bool              `json:"start_enabled"`
	StopEnabled  bool              `json:"stop_enabled"`
	Tracking     bool              `json:"tracking"`
}

// Snapshot：内存展示面
// 背景：状态端点与测试直接读取；与推送面并挂在 Multi 上保持一致
type Snapshot struct {
	mu sync.RWMutex
	st State
}

func NewSnapshot() *Snapshot {
	return &Snapshot{st: State{Fields: make(map[string]string), StartEnabled: true}}
}

func (s *Snapshot) SetField(name, value string) {
	s.mu.Lock()
	s.st.Fields[name] = value
	s.mu.Unlock()
}

func (s *Snapshot) SetAccuracy(meters float64, visible bool) {
	s.mu.Lock()
	s.st.AccuracyM = meters
	s.st.ShowAccuracy = visible
	s.mu.Unlock()
}

func (s *Snapshot) SetError(msg string) {
	s.mu.Lock()
	s.st.Error = msg
	s.mu.Unlock()
}

func (s *Snapshot) ClearError() {
	s.mu.Lock()
	s.st.Error = ""
	s.mu.Unlock()
}

func (s *Snapshot) SetLoading(on bool) {
	s.mu.Lock()
	s.st.Loading = on
	s.mu.Unlock()
}

func (s *Snapshot) SetControls(startEnabled, stopEnabled bool) {
	s.mu.Lock()
	s.st.StartEnabled = startEnabled
	s.st.StopEnabled = stopEnabled
	s.mu.Unlock()
}

func (s *Snapshot) SetTracking(active bool) {
	s.mu.Lock()
	s.st.Tracking = active
	s.mu.Unlock()
}

// State：取快照副本
func (s *Snapshot) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.st
	out.Fields = make(map[string]string, len(s.st.Fields))
	for k, v := range s.st.Fields {
		out.Fields[k] = v
	}
	return out
}
