// Configuration loading for the [chamois] section.
//
// Copyright (C) 2026  Chamois Host Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package chamois

import (
	"net"
	"strconv"

	"chamois-host/pkg/config"
)

// LoadConfig reads the orchestrator and link tunables from a [chamois]
// config section. tcp_address is required; everything else has defaults.
func LoadConfig(sec *config.Section) (Config, LinkConfig, error) {
	cfg := DefaultConfig()
	link := DefaultLinkConfig()

	host, err := sec.Get("tcp_address")
	if err != nil {
		return cfg, link, err
	}
	port, err := sec.GetInt("tcp_port", 5433)
	if err != nil {
		return cfg, link, err
	}
	link.Address = net.JoinHostPort(host, strconv.Itoa(port))

	if link.ConnectTimeout, err = sec.GetSeconds("connect_timeout", link.ConnectTimeout); err != nil {
		return cfg, link, err
	}
	if link.ReadTimeout, err = sec.GetSeconds("read_timeout", link.ReadTimeout); err != nil {
		return cfg, link, err
	}

	if cfg.Slots, err = sec.GetIntBounded("number_of_toolhead", 1, 20, cfg.Slots); err != nil {
		return cfg, link, err
	}
	if cfg.MaxRetries, err = sec.GetIntBounded("max_retries", 1, 1000, cfg.MaxRetries); err != nil {
		return cfg, link, err
	}
	if cfg.PollInterval, err = sec.GetSeconds("poll_interval", cfg.PollInterval); err != nil {
		return cfg, link, err
	}
	if cfg.Keepalive, err = sec.GetSeconds("mmu_keepalive", cfg.Keepalive); err != nil {
		return cfg, link, err
	}
	return cfg, link, nil
}
