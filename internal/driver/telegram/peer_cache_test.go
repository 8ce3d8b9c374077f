package telegram

import (
	"errors"
	"testing"

	"chanpulse/pkg/pulse"

	"github.com/gotd/td/tg"
)

func TestPeerCacheRememberAndResolve(t *testing.T) {
	t.Parallel()

	cache := NewPeerCache()
	ref, ok := cache.RememberChannel(&tg.Channel{ID: 30, AccessHash: 3030, Username: "Pulse", Title: "Pulse"})
	if !ok || ref.Username != "pulse" {
		t.Fatalf("remember = %+v, %v", ref, ok)
	}
	if _, ok := cache.RememberChannel(nil); ok {
		t.Fatal("remember nil channel = true")
	}
	cache.RememberChannel(&tg.Channel{ID: 40, AccessHash: 4040})

	tests := []struct {
		name     string
		channel  pulse.ChannelRef
		wantHash int64
		wantErr  error
	}{
		{name: "public channel", channel: pulse.ChannelRef{ID: 30}, wantHash: 3030},
		{name: "private channel", channel: pulse.ChannelRef{ID: 40}, wantHash: 4040},
		{name: "unknown channel", channel: pulse.ChannelRef{ID: 50}, wantErr: pulse.ErrChannelNotFound},
		{name: "invalid reference", channel: pulse.ChannelRef{}, wantErr: pulse.ErrInvalidChannel},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			peer, err := cache.Resolve(testCase.channel)
			if testCase.wantErr != nil {
				if !errors.Is(err, testCase.wantErr) {
					t.Fatalf("error = %v, want %v", err, testCase.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if peer.AccessHash != testCase.wantHash {
				t.Fatalf("access hash = %d, want %d", peer.AccessHash, testCase.wantHash)
			}
		})
	}
}

func TestPeerCacheReturnsCopies(t *testing.T) {
	t.Parallel()

	cache := NewPeerCache()
	cache.RememberChannel(&tg.Channel{ID: 1, AccessHash: 11})

	peer, err := cache.Resolve(pulse.ChannelRef{ID: 1})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	peer.AccessHash = 0

	input, err := cache.ResolveChannel(pulse.ChannelRef{ID: 1})
	if err != nil {
		t.Fatalf("resolve channel: %v", err)
	}
	if input.AccessHash != 11 {
		t.Fatalf("access hash = %d, want cached copy untouched", input.AccessHash)
	}

	if _, ok := cache.LookupUsername("@missing"); ok {
		t.Fatal("lookup missing username = true")
	}

	var nilCache *PeerCache
	if _, err := nilCache.Resolve(pulse.ChannelRef{ID: 1}); err == nil {
		t.Fatal("expected nil cache error")
	}
}
