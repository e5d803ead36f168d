package voice

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

var errTestProvider = errors.New("provider read: connection reset")

func TestAudioMimeTypeFollowsConfiguredRate(t *testing.T) {
	tests := []struct {
		rate int
		want string
	}{
		{16000, "audio/pcm;rate=16000"},
		{24000, "audio/pcm;rate=24000"},
		{0, "audio/pcm;rate=16000"},
		{-1, "audio/pcm;rate=16000"},
	}
	for _, tt := range tests {
		if got := audioMimeType(tt.rate); got != tt.want {
			t.Errorf("audioMimeType(%d) = %q, want %q", tt.rate, got, tt.want)
		}
	}
}

func TestWritePumpsStopOnSessionClose(t *testing.T) {
	rc := &relayConn{
		sess:         NewSession(zap.NewNop()),
		browserSend:  make(chan Message, 1),
		providerSend: make(chan any, 1),
		done:         make(chan struct{}),
		logger:       zap.NewNop(),
	}
	rc.sess.AddTeardown(func() { close(rc.done) })

	pumpDone := make(chan struct{})
	go func() {
		rc.providerWritePump()
		close(pumpDone)
	}()

	if err := rc.sess.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	rc.sess.Close()

	select {
	case <-pumpDone:
	case <-time.After(time.Second):
		t.Fatal("provider write pump still running after session close")
	}
}

func TestWritePumpsStopOnSessionFailure(t *testing.T) {
	rc := &relayConn{
		sess:         NewSession(zap.NewNop()),
		browserSend:  make(chan Message, 1),
		providerSend: make(chan any, 1),
		done:         make(chan struct{}),
		logger:       zap.NewNop(),
	}
	rc.sess.AddTeardown(func() { close(rc.done) })

	pumpDone := make(chan struct{})
	go func() {
		rc.providerWritePump()
		close(pumpDone)
	}()

	if err := rc.sess.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	rc.sess.Fail(errTestProvider)

	select {
	case <-pumpDone:
	case <-time.After(time.Second):
		t.Fatal("provider write pump still running after session failure")
	}
}
