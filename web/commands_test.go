package main

import (
	"encoding/base64"
	"io"
	"log/slog"
	"testing"
)

func TestParseStudentFile(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    map[string]string
		wantErr bool
	}{
		{
			name: "json",
			data: `{"ivan": "Иван Петров", "maria": "Мария Лопес"}`,
			want: map[string]string{"ivan": "Иван Петров", "maria": "Мария Лопес"},
		},
		{
			name: "yaml",
			data: "ivan: Иван Петров\noleg: Олег\n",
			want: map[string]string{"ivan": "Иван Петров", "oleg": "Олег"},
		},
		{name: "empty", data: "{}", wantErr: true},
		{name: "list instead of map", data: "- ivan\n- maria\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseStudentFile([]byte(tt.data))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s: expected %q, got %q", k, v, got[k])
				}
			}
		})
	}
}

func TestSecretKey(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	raw := []byte("0123456789abcdef0123456789abcdef")

	key, err := secretKey("test", base64.StdEncoding.EncodeToString(raw), log)
	if err != nil || string(key) != string(raw) {
		t.Errorf("expected decoded base64 key, got %q %v", key, err)
	}

	key, err = secretKey("test", "plain-secret", log)
	if err != nil || string(key) != "plain-secret" {
		t.Errorf("expected raw key, got %q %v", key, err)
	}

	first, _ := secretKey("test", "", log)
	second, _ := secretKey("test", "", log)
	if len(first) != 32 || string(first) == string(second) {
		t.Error("expected distinct random 32 byte keys")
	}
}
