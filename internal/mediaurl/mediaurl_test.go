package mediaurl

import "testing"

func TestAudio(t *testing.T) {
	if got := Audio("", "a.mp3"); got != "/uploads/audio/a.mp3" {
		t.Fatalf("Audio() = %q", got)
	}
	if got := Audio("https://echobox.example/ ", "a.mp3"); got != "https://echobox.example/uploads/audio/a.mp3" {
		t.Fatalf("Audio() = %q", got)
	}
}

func TestParseAudioName(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{name: "relative", raw: "/uploads/audio/abc.mp3", want: "abc.mp3", wantOK: true},
		{name: "absolute", raw: "http://localhost:8000/uploads/audio/abc.mp3", want: "abc.mp3", wantOK: true},
		{name: "remote_object", raw: "https://bucket.s3.amazonaws.com/echoes/abc.mp3", wantOK: false},
		{name: "nested", raw: "/uploads/audio/x/abc.mp3", wantOK: false},
		{name: "traversal", raw: "/uploads/audio/..", wantOK: false},
		{name: "empty", raw: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseAudioName(tt.raw)
			if ok != tt.wantOK || got != tt.want {
				t.Fatalf("ParseAudioName(%q) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
