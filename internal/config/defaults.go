package config

import (
	"time"
)

func Defaults() *Config {

	return &Config{
		HostName:  "sid",
		LANIfName: "",
		StatePath: "./state/sid-state.json",
		Tick:      5 * time.Millisecond,

		BTTFN: BTTFNConfig{
			Enabled:         true,
			Port:            1338,
			MulticastGroup:  "224.0.0.224",
			MulticastPort:   1339,
			PollInterval:    time.Second,
			ResponseTimeout: 700 * time.Millisecond,
			MaxFailures:     10,
			Liveness:        30 * time.Second,
			BootLiveness:    60 * time.Second,
			NetworkTT:       true,
		},

		Sequencer: SequencerConfig{
			SkipAnimation: true,
			Strict:        true,
			Lead:          5 * time.Second,
			Brightness:    15,
		},

		Wire: WireConfig{
			Device: "/dev/ttyACM0",
		},

		Web: WebConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
	}
}
