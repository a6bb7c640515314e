package main

import (
	"testing"

	"github.com/eleven-am/scene-narrator/internal/bootstrap"
)

func TestOverridesFromFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    bootstrap.Overrides
		wantErr bool
	}{
		{name: "defaults leave env in effect", args: nil, want: bootstrap.Overrides{}},
		{
			name: "resolution only",
			args: []string{"--webcam-resolution", "640,480"},
			want: bootstrap.Overrides{Width: 640, Height: 480},
		},
		{
			name: "fov and env file",
			args: []string{"--horizontal-fov", "90", "--config-env", "narrator.env"},
			want: bootstrap.Overrides{HorizontalFOV: 90, EnvFile: "narrator.env"},
		},
		{name: "one value", args: []string{"--webcam-resolution", "1280"}, wantErr: true},
		{name: "negative width", args: []string{"--webcam-resolution", "-1,720"}, wantErr: true},
		{name: "fov too wide", args: []string{"--horizontal-fov", "180"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCmd()
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatalf("parse flags: %v", err)
			}
			got, err := overridesFromFlags(cmd)
			if (err != nil) != tt.wantErr {
				t.Fatalf("overridesFromFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("overridesFromFlags() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
