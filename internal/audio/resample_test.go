package audio

import "testing"

func TestResample_Downsample(t *testing.T) {
	in := make([]int16, 48000)
	for i := range in {
		in[i] = 1000
	}
	out := Resample(in, 48000, 16000)
	if len(out) != 16000 {
		t.Fatalf("expected 16000 samples, got %d", len(out))
	}
	for i, v := range out {
		if v != 1000 {
			t.Fatalf("sample %d: expected constant 1000, got %d", i, v)
		}
	}
}

func TestResample_SameRateIsIdentity(t *testing.T) {
	in := []int16{1, 2, 3}
	out := Resample(in, 16000, 16000)
	if len(out) != 3 || &out[0] != &in[0] {
		t.Fatal("expected the input slice back unchanged")
	}
}

func TestDownmix(t *testing.T) {
	out := Downmix([]int16{10, 20, -30, -50}, 2)
	if len(out) != 2 || out[0] != 15 || out[1] != -40 {
		t.Fatalf("unexpected mono samples %v", out)
	}
}
