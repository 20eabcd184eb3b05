// Package codecs wires every modality codec into a registry using the
// loaded configuration.
package codecs

import (
	"github.com/synapsense/synapsense/internal/config"
	"github.com/synapsense/synapsense/internal/modality"
	"github.com/synapsense/synapsense/internal/modality/dvs"
	"github.com/synapsense/synapsense/internal/modality/imu"
	"github.com/synapsense/synapsense/internal/modality/lidar"
	"github.com/synapsense/synapsense/internal/modality/rgb"
)

// Configure installs the extension table and codecs from cfg into reg.
// A nil reg configures modality.Default.
func Configure(reg *modality.Registry, cfg *config.Config) (*modality.Registry, error) {
	if reg == nil {
		reg = modality.Default
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	comp, err := dvs.ParseCompression(cfg.DVS.Compression)
	if err != nil {
		return nil, err
	}

	exts := modality.ExtensionsFromConfig(cfg.Modalities)
	if len(exts) == 0 {
		exts = modality.DefaultExtensions()
	}
	reg.SetExtensions(exts)

	reg.Register(modality.DVS, dvs.New(dvs.Options{Compression: comp, PacketSize: cfg.DVS.PacketSize}))
	reg.Register(modality.IMU, imu.New())
	reg.Register(modality.LiDAR, lidar.New())
	reg.Register(modality.RGB, rgb.New(rgb.Options{JPEGQuality: cfg.RGB.JPEGQuality}))
	return reg, nil
}

// NewRegistry returns a fresh registry configured from cfg.
func NewRegistry(cfg *config.Config) (*modality.Registry, error) {
	return Configure(modality.NewRegistry(nil), cfg)
}
