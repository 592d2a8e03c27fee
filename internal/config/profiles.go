package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is a preset forwarding target the dashboard can start by name
// instead of spelling out namespace/pod/port on every request.
type Profile struct {
	Name        string `yaml:"name" json:"name"`
	Namespace   string `yaml:"namespace" json:"namespace"`
	Pod         string `yaml:"pod" json:"pod"`
	Port        int    `yaml:"port" json:"port"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

type profilesFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// LoadProfiles reads preset forward targets from a YAML file. A missing path
// yields an empty list, not an error.
func LoadProfiles(path string) ([]Profile, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read profiles file: %w", err)
	}

	var f profilesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse profiles file: %w", err)
	}

	for i, p := range f.Profiles {
		if p.Name == "" || p.Pod == "" {
			return nil, fmt.Errorf("profile %d: name and pod are required", i)
		}
		if p.Namespace == "" {
			f.Profiles[i].Namespace = Cfg.DefaultNamespace
		}
		if p.Port == 0 {
			f.Profiles[i].Port = Cfg.DefaultPort
		}
	}

	return f.Profiles, nil
}

// FindProfile returns the profile with the given name, if present.
func FindProfile(profiles []Profile, name string) (Profile, bool) {
	for _, p := range profiles {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}
