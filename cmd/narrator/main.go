package main

import (
	"fmt"
	"os"

	"github.com/eleven-am/scene-narrator/internal/bootstrap"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "narrator",
		Short: "Describe the camera's surroundings aloud and answer spoken commands",
		Long: `narrator watches a camera, detects objects in every frame and periodically
speaks a summary of what changed. Say the wake phrase to find an object,
ask a question about the scene or send an emergency email.

Settings are read from the environment (and an optional .env file);
the flags below override them.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := overridesFromFlags(cmd)
			if err != nil {
				return err
			}
			return bootstrap.Run(o)
		},
	}

	cmd.Flags().IntSlice("webcam-resolution", []int{1280, 720}, "Camera resolution as width,height")
	cmd.Flags().Float64("horizontal-fov", 70.0, "Horizontal field of view of the camera in degrees")
	cmd.Flags().String("config-env", "", "Path to a .env file (defaults to ./.env when present)")
	return cmd
}

// overridesFromFlags only carries flags given on the command line, so
// unset flags leave WEBCAM_WIDTH, WEBCAM_HEIGHT and HORIZONTAL_FOV in effect.
func overridesFromFlags(cmd *cobra.Command) (bootstrap.Overrides, error) {
	var o bootstrap.Overrides
	o.EnvFile, _ = cmd.Flags().GetString("config-env")

	if cmd.Flags().Changed("webcam-resolution") {
		res, _ := cmd.Flags().GetIntSlice("webcam-resolution")
		if len(res) != 2 || res[0] <= 0 || res[1] <= 0 {
			return o, fmt.Errorf("--webcam-resolution expects width,height, got %v", res)
		}
		o.Width, o.Height = res[0], res[1]
	}
	if cmd.Flags().Changed("horizontal-fov") {
		fov, _ := cmd.Flags().GetFloat64("horizontal-fov")
		if fov <= 0 || fov >= 180 {
			return o, fmt.Errorf("--horizontal-fov must be between 0 and 180, got %.1f", fov)
		}
		o.HorizontalFOV = fov
	}
	return o, nil
}
