package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mkazarin/accountgate/config"
	"github.com/mkazarin/accountgate/internal/domain"
)

func TestCredentialRotationPool_RoundRobin(t *testing.T) {
	store := &mockCredentialStore{pool: []domain.CredentialRecord{
		{APIID: 1, APIHash: "a"},
		{APIID: 2, APIHash: "b"},
		{APIID: 3, APIHash: "c"},
	}}
	pool := NewCredentialRotationPool(store, &config.ReceiverConfig{}, zerolog.Nop())

	var got []int
	for i := 0; i < 6; i++ {
		credential, err := pool.Next(context.Background())
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		got = append(got, credential.APIID)
	}

	want := []int{1, 2, 3, 1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Rotation order %v, want %v", got, want)
		}
	}
}

func TestCredentialRotationPool_EmptyPoolFallsBackToDefault(t *testing.T) {
	pool := NewCredentialRotationPool(
		&mockCredentialStore{},
		&config.ReceiverConfig{DefaultAPIID: 2040, DefaultAPIHash: "default"},
		zerolog.Nop(),
	)

	credential, err := pool.Next(context.Background())
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if credential.APIID != 2040 || credential.APIHash != "default" {
		t.Errorf("Expected default credentials, got %+v", credential)
	}
}

func TestCredentialRotationPool_StoreErrorPropagates(t *testing.T) {
	pool := NewCredentialRotationPool(
		&mockCredentialStore{err: errors.New("db down")},
		&config.ReceiverConfig{},
		zerolog.Nop(),
	)
	if _, err := pool.Next(context.Background()); err == nil {
		t.Fatal("Expected store error to propagate")
	}
}

func TestProxyPool_EmptyPoolMeansDirect(t *testing.T) {
	pool := NewProxyPool(&mockProxyStore{}, zerolog.Nop())
	endpoint, err := pool.Next(context.Background())
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if endpoint != nil {
		t.Errorf("Empty pool should mean direct connection, got %+v", endpoint)
	}
}

func TestProxyPool_MalformedEntryDegradesToDirect(t *testing.T) {
	pool := NewProxyPool(&mockProxyStore{entries: []string{"not-a-proxy"}}, zerolog.Nop())
	endpoint, err := pool.Next(context.Background())
	if err != nil {
		t.Fatalf("Malformed entry must not fail selection: %v", err)
	}
	if endpoint != nil {
		t.Errorf("Malformed entry should degrade to direct, got %+v", endpoint)
	}
}

func TestParseProxyEntry(t *testing.T) {
	tests := []struct {
		name    string
		entry   string
		want    *domain.ProxyEndpoint
		wantErr bool
	}{
		{
			name:  "host and port",
			entry: "10.0.0.1:1080",
			want:  &domain.ProxyEndpoint{Host: "10.0.0.1", Port: 1080},
		},
		{
			name:  "with credentials",
			entry: "proxy.example.com:1080:user:secret",
			want:  &domain.ProxyEndpoint{Host: "proxy.example.com", Port: 1080, Username: "user", Password: "secret"},
		},
		{
			name:    "missing port",
			entry:   "10.0.0.1",
			wantErr: true,
		},
		{
			name:    "non-numeric port",
			entry:   "10.0.0.1:zero",
			wantErr: true,
		},
		{
			name:    "port out of range",
			entry:   "10.0.0.1:70000",
			wantErr: true,
		},
		{
			name:    "empty host",
			entry:   ":1080",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			endpoint, err := ParseProxyEntry(tt.entry)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrProxyMalformed) {
					t.Fatalf("Expected ErrProxyMalformed, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseProxyEntry failed: %v", err)
			}
			if *endpoint != *tt.want {
				t.Errorf("ParseProxyEntry = %+v, want %+v", endpoint, tt.want)
			}
		})
	}
}
