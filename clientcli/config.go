package clientcli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Profile holds the connection settings for one cluster.
type Profile struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Key      string `yaml:"key,omitempty"`
	KeyFile  string `yaml:"key_file,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Gateway  string `yaml:"gateway,omitempty"`
	Default  bool   `yaml:"default,omitempty"`
}

// ConfigFile holds the full profiles file structure.
type ConfigFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// GetProfile returns the profile by name.
// If name is empty, returns the default profile.
func (c *ConfigFile) GetProfile(name string) (*Profile, error) {
	if len(c.Profiles) == 0 {
		return nil, ErrNoProfiles
	}

	if name == "" {
		return c.GetDefaultProfile()
	}

	for i := range c.Profiles {
		if c.Profiles[i].Name == name {
			return &c.Profiles[i], nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
}

// GetDefaultProfile returns the default profile.
// If no profile is marked as default, returns the first profile.
func (c *ConfigFile) GetDefaultProfile() (*Profile, error) {
	if len(c.Profiles) == 0 {
		return nil, ErrNoProfiles
	}

	for i := range c.Profiles {
		if c.Profiles[i].Default {
			return &c.Profiles[i], nil
		}
	}

	return &c.Profiles[0], nil
}

// AddProfile adds a new profile. Returns ErrProfileExists if a profile
// with the same name already exists. Use UpdateProfile to modify an existing profile.
func (c *ConfigFile) AddProfile(p Profile) error {
	if p.Name == "" {
		return ErrProfileNameRequired
	}
	for i := range c.Profiles {
		if c.Profiles[i].Name == p.Name {
			return fmt.Errorf("%w: %s", ErrProfileExists, p.Name)
		}
	}
	c.Profiles = append(c.Profiles, p)
	if p.Default {
		return c.SetDefault(p.Name)
	}
	return nil
}

// UpdateProfile replaces an existing profile. Returns ErrProfileNotFound
// if the profile doesn't exist.
func (c *ConfigFile) UpdateProfile(p Profile) error {
	for i := range c.Profiles {
		if c.Profiles[i].Name == p.Name {
			c.Profiles[i] = p
			if p.Default {
				return c.SetDefault(p.Name)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrProfileNotFound, p.Name)
}

// RemoveProfile removes a profile by name.
func (c *ConfigFile) RemoveProfile(name string) error {
	for i := range c.Profiles {
		if c.Profiles[i].Name == name {
			c.Profiles = append(c.Profiles[:i], c.Profiles[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
}

// SetDefault marks name as the default profile and clears the flag on all others.
func (c *ConfigFile) SetDefault(name string) error {
	found := false
	for i := range c.Profiles {
		if c.Profiles[i].Name == name {
			c.Profiles[i].Default = true
			found = true
		} else {
			c.Profiles[i].Default = false
		}
	}

	if !found {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	return nil
}

// DefaultName returns the name of the default profile, or "" when there are none.
func (c *ConfigFile) DefaultName() string {
	p, err := c.GetDefaultProfile()
	if err != nil {
		return ""
	}
	return p.Name
}

// ProfileNames returns a list of all profile names.
func (c *ConfigFile) ProfileNames() []string {
	names := make([]string, len(c.Profiles))
	for i := range c.Profiles {
		names[i] = c.Profiles[i].Name
	}
	return names
}

// Save writes the profiles to path, creating the parent directory if needed.
// The file holds secrets, so it is written owner-only.
func (c *ConfigFile) Save(path string) error {
	cleanPath := filepath.Clean(path)

	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal profiles: %w", err)
	}

	if err := os.WriteFile(cleanPath, data, 0o600); err != nil {
		return fmt.Errorf("write profiles file: %w", err)
	}

	return nil
}

// LoadConfigFile loads the profiles file from path.
func LoadConfigFile(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(filepath.Clean(path)) //#nosec G304 -- path is user-provided config file
	if err != nil {
		return nil, fmt.Errorf("read profiles file: %w", err)
	}

	var cfg ConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse profiles file: %w", err)
	}

	return &cfg, nil
}

// LoadOrEmpty loads the profiles file, returning an empty ConfigFile when
// the file does not exist yet.
func LoadOrEmpty(path string) (*ConfigFile, error) {
	cfg, err := LoadConfigFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &ConfigFile{}, nil
		}
		return nil, err
	}
	return cfg, nil
}

// DefaultProfilesPath returns ~/.constellation/profiles.yaml.
func DefaultProfilesPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".constellation", "profiles.yaml")
}

// ProfileFromEnv returns the profile name from CONSTELLATION_PROFILE.
func ProfileFromEnv() string {
	return os.Getenv("CONSTELLATION_PROFILE")
}

// ProfilesPathFromEnv returns the profiles file path from CONSTELLATION_PROFILES.
func ProfilesPathFromEnv() string {
	return os.Getenv("CONSTELLATION_PROFILES")
}
