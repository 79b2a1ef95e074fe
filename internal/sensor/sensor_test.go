package sensor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

const sampleGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk>
    <name>Morning Run</name>
    <trkseg>
      <trkpt lat="21.0" lon="105.0"><time>2024-01-15T10:00:00Z</time></trkpt>
      <trkpt lat="21.0" lon="105.0003"><time>2024-01-15T10:00:01Z</time></trkpt>
      <trkpt lat="21.0" lon="105.0006"><time>2024-01-15T10:00:02Z</time></trkpt>
      <trkpt lat="21.0" lon="105.0009"><time>2024-01-15T10:00:04Z</time></trkpt>
      <trkpt lat="21.0" lon="105.0012"></trkpt>
    </trkseg>
  </trk>
</gpx>`

func TestParseGPX(t *testing.T) {
	fixes, err := ParseGPX(strings.NewReader(sampleGPX))
	if err != nil {
		t.Fatalf("ParseGPX() error = %v", err)
	}

	// the untimed point is skipped
	if len(fixes) != 4 {
		t.Fatalf("len(fixes) = %d, want 4", len(fixes))
	}
	if fixes[3].Point.Longitude != 105.0009 {
		t.Errorf("fixes[3].Longitude = %v, want 105.0009", fixes[3].Point.Longitude)
	}
	for i := 1; i < len(fixes); i++ {
		if fixes[i].Time.Before(fixes[i-1].Time) {
			t.Errorf("fixes not in time order at %d", i)
		}
	}
}

func TestParseGPXErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"not xml", "hello", nil},
		{"no timed points", `<gpx><trk><trkseg><trkpt lat="1" lon="2"></trkpt></trkseg></trk></gpx>`, ErrEmptyTrack},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGPX(strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestReplayHonoursMinInterval(t *testing.T) {
	fixes, err := ParseGPX(strings.NewReader(sampleGPX))
	if err != nil {
		t.Fatalf("ParseGPX() error = %v", err)
	}

	base := time.Date(2025, 6, 1, 7, 0, 0, 0, time.UTC)
	r := NewReplay(fixes, 0)
	r.now = func() time.Time { return base }

	var mu sync.Mutex
	var got []Fix
	sub, err := r.WatchPosition(DefaultLocationOptions(), func(f Fix) {
		mu.Lock()
		got = append(got, f)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("WatchPosition() error = %v", err)
	}

	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("replay did not finish")
	}
	sub.Unsubscribe()

	mu.Lock()
	defer mu.Unlock()
	// 10:00:00, 10:00:02, 10:00:04 survive the 2s filter
	if len(got) != 3 {
		t.Fatalf("len(got) = %d, want 3", len(got))
	}
	if !got[0].Time.Equal(base) {
		t.Errorf("first fix time = %v, want %v", got[0].Time, base)
	}
	if want := base.Add(4 * time.Second); !got[2].Time.Equal(want) {
		t.Errorf("last fix time = %v, want %v", got[2].Time, want)
	}
	if r.Duration() != 4*time.Second {
		t.Errorf("Duration() = %v, want 4s", r.Duration())
	}
}

func TestReplayUnsubscribeStopsPlayback(t *testing.T) {
	fixes, err := ParseGPX(strings.NewReader(sampleGPX))
	if err != nil {
		t.Fatalf("ParseGPX() error = %v", err)
	}

	// one hour per second of track: only the first fix is delivered before we stop
	r := NewReplay(fixes, 1.0/3600)
	var mu sync.Mutex
	count := 0
	sub, _ := r.WatchPosition(LocationOptions{}, func(Fix) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	time.Sleep(20 * time.Millisecond)
	sub.Unsubscribe()

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestStrideSimulatorEmitsSamples(t *testing.T) {
	var mu sync.Mutex
	count := 0
	sub, err := StrideSimulator{}.Watch(5*time.Millisecond, func(s Sample) {
		mu.Lock()
		count++
		mu.Unlock()
		if s.Magnitude() <= 0 {
			t.Errorf("sample magnitude = %v, want > 0", s.Magnitude())
		}
	})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	sub.Unsubscribe()

	mu.Lock()
	defer mu.Unlock()
	if count == 0 {
		t.Error("expected samples before unsubscribe")
	}
}

func TestDecodeFix(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"valid", `{"lat":21.0,"lng":105.0,"time":1705312800000}`, false},
		{"bad json", `{"lat":`, true},
		{"latitude out of range", `{"lat":91,"lng":105.0,"time":1}`, true},
		{"missing time", `{"lat":21.0,"lng":105.0}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fix, err := DecodeFix([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeFix() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && fix.Time.UnixMilli() != 1705312800000 {
				t.Errorf("Time = %v, want 1705312800000", fix.Time.UnixMilli())
			}
		})
	}
}

func TestDecodeSample(t *testing.T) {
	s, err := DecodeSample([]byte(`{"x":0.1,"y":0.2,"z":9.8}`))
	if err != nil {
		t.Fatalf("DecodeSample() error = %v", err)
	}
	if s.Z != 9.8 {
		t.Errorf("Z = %v, want 9.8", s.Z)
	}
	if !s.Time.IsZero() {
		t.Errorf("Time = %v, want zero", s.Time)
	}

	if _, err := DecodeSample([]byte(`nope`)); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func TestStaticPermission(t *testing.T) {
	ok, err := StaticPermission(true).RequestLocationPermission(context.Background())
	if err != nil || !ok {
		t.Errorf("StaticPermission(true) = %v, %v", ok, err)
	}
	ok, _ = StaticPermission(false).RequestLocationPermission(context.Background())
	if ok {
		t.Error("StaticPermission(false) granted")
	}
}
