package metrics

import "testing"

func TestGet_ReturnsSingleton(t *testing.T) {
	a := Get()
	b := Get()
	if a != b {
		t.Error("Get() should return the same instance across calls")
	}
	if a.TicksTotal == nil || a.ActiveStage == nil || a.MQTTConnectionStatus == nil {
		t.Error("Get() should return fully-initialized metrics")
	}
}

func TestStatusToStr(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{200, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{500, "5xx"},
		{0, "other"},
	}
	for _, tt := range tests {
		if got := statusToStr(tt.status); got != tt.want {
			t.Errorf("statusToStr(%d) = %s, want %s", tt.status, got, tt.want)
		}
	}
}
