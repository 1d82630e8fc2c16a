package cache

import (
	"testing"

	"github.com/ardnew/softhpi/hpi"
)

// buildRegion lays out one control of each listed type, index = position.
func buildRegion(types ...hpi.ControlType) []byte {
	var region []byte
	for i, t := range types {
		region = AppendEntry(region, t, uint16(i))
	}
	return region
}

func getState(index uint16, a hpi.Attribute) (*hpi.Message, *hpi.Response) {
	m := hpi.NewMessage(hpi.ControlGetState, 0, index)
	m.Control.Attribute = a
	return m, hpi.NewResponse(m)
}

func setState(index uint16, a hpi.Attribute) (*hpi.Message, *hpi.Response) {
	m := hpi.NewMessage(hpi.ControlSetState, 0, index)
	m.Control.Attribute = a
	return m, hpi.NewResponse(m)
}

// =============================================================================
// Check Tests
// =============================================================================

func TestCheckHits(t *testing.T) {
	c := New(3, buildRegion(hpi.ControlMeter, hpi.ControlVolume, hpi.ControlSampleClock))

	c.Entry(0).Store(hpi.MeterPeak, &hpi.ControlResponse{Gain: [2]int16{-300, -450}})
	c.Entry(2).Store(hpi.SampleClockSampleRate, &hpi.ControlResponse{Param1: 48000})

	m, r := getState(0, hpi.MeterPeak)
	if !c.Check(m, r) {
		t.Fatal("meter peak missed")
	}
	if r.Error != hpi.ErrorNone || r.Control.Gain != [2]int16{-300, -450} {
		t.Errorf("meter response = %v %v", r.Error, r.Control.Gain)
	}

	m, r = getState(2, hpi.SampleClockSampleRate)
	if !c.Check(m, r) || r.Control.Param1 != 48000 {
		t.Errorf("sample rate = %d", r.Control.Param1)
	}

	hits, misses := c.Stats()
	if hits != 2 || misses != 0 {
		t.Errorf("Stats() = %d, %d", hits, misses)
	}
}

func TestCheckMisses(t *testing.T) {
	c := New(2, buildRegion(hpi.ControlVolume, hpi.ControlMicrophone))

	tests := []struct {
		name  string
		index uint16
		attr  hpi.Attribute
	}{
		{"non-cacheable attribute", 0, hpi.VolumeRange},
		{"attribute of other type", 0, hpi.LevelGain},
		{"uncached control type", 1, hpi.MicrophonePhantomPower},
		{"index out of range", 5, hpi.VolumeGain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, r := getState(tt.index, tt.attr)
			if c.Check(m, r) {
				t.Error("Check() hit")
			}
			if r.Error != hpi.ErrorProcessingMessage {
				t.Errorf("miss touched response error: %v", r.Error)
			}
		})
	}

	// Set-state never hits.
	m, r := setState(0, hpi.VolumeGain)
	if c.Check(m, r) {
		t.Error("set-state answered from cache")
	}
}

func TestCheckBadRegion(t *testing.T) {
	region := buildRegion(hpi.ControlVolume)
	region[1] = 0 // entry size zero

	c := New(1, region)
	m, r := getState(0, hpi.VolumeGain)
	if c.Check(m, r) {
		t.Error("unusable region answered")
	}

	// Truncated region.
	c = New(2, buildRegion(hpi.ControlVolume))
	if c.Entry(0) != nil {
		t.Error("truncated region produced entries")
	}
}

// =============================================================================
// Sync Tests
// =============================================================================

func TestSyncUsesConfirmedValue(t *testing.T) {
	c := New(1, buildRegion(hpi.ControlVolume))

	m, r := setState(0, hpi.VolumeGain)
	m.Control.Gain = [2]int16{3000, 3000}
	r.Error = hpi.ErrorNone
	r.Control.Gain = [2]int16{hpi.GainMax, hpi.GainMax}
	c.Sync(m, r)

	gm, gr := getState(0, hpi.VolumeGain)
	if !c.Check(gm, gr) {
		t.Fatal("volume gain missed after sync")
	}
	if gr.Control.Gain != [2]int16{hpi.GainMax, hpi.GainMax} {
		t.Errorf("cached gain = %v, want clamped %d", gr.Control.Gain, hpi.GainMax)
	}
}

func TestSyncIgnoresFailures(t *testing.T) {
	c := New(1, buildRegion(hpi.ControlMultiplexer))
	c.Entry(0).Store(hpi.MultiplexerSource, &hpi.ControlResponse{Param1: hpi.SourceNodeLineIn, Param2: 1})

	m, r := setState(0, hpi.MultiplexerSource)
	r.Error = hpi.ErrorInvalidControlValue
	r.Control.Param1 = hpi.SourceNodeTuner
	c.Sync(m, r)

	gm, gr := getState(0, hpi.MultiplexerSource)
	c.Check(gm, gr)
	if gr.Control.Param1 != hpi.SourceNodeLineIn || gr.Control.Param2 != 1 {
		t.Errorf("failed set changed cache: %d/%d", gr.Control.Param1, gr.Control.Param2)
	}
}

func TestSyncReadOnlyAttribute(t *testing.T) {
	c := New(1, buildRegion(hpi.ControlTuner))
	c.Entry(0).Store(hpi.TunerLevelAvg, &hpi.ControlResponse{Gain: [2]int16{-1200}})

	m, r := setState(0, hpi.TunerLevelAvg)
	r.Error = hpi.ErrorNone
	r.Control.Gain[0] = 0
	c.Sync(m, r)

	gm, gr := getState(0, hpi.TunerLevelAvg)
	if !c.Check(gm, gr) || gr.Control.Gain[0] != -1200 {
		t.Errorf("read-only level changed to %d", gr.Control.Gain[0])
	}
}

func TestRefresh(t *testing.T) {
	c := New(1, buildRegion(hpi.ControlLevel))

	fresh := buildRegion(hpi.ControlLevel)
	New(1, fresh).Entry(0).Store(hpi.LevelGain, &hpi.ControlResponse{Gain: [2]int16{-600, -700}})
	c.Refresh(fresh)

	m, r := getState(0, hpi.LevelGain)
	if !c.Check(m, r) || r.Control.Gain != [2]int16{-600, -700} {
		t.Errorf("level after refresh = %v", r.Control.Gain)
	}
}

func TestCacheable(t *testing.T) {
	if !Cacheable(hpi.TunerFreq) {
		t.Error("tuner frequency not cacheable")
	}
	if Cacheable(hpi.VolumeRange) {
		t.Error("volume range cacheable")
	}
}
