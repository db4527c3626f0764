package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/docvault/pkg/access"
	"github.com/platinummonkey/docvault/pkg/filetypes"
	"github.com/platinummonkey/docvault/pkg/models"
	"github.com/platinummonkey/docvault/pkg/rbac"
	"github.com/platinummonkey/docvault/pkg/storage"
)

// AccessRules are the deployment-specific access settings
type AccessRules struct {
	Access access.Config

	// LegacyUnassignedSuperUser treats users without company or property
	// as super-users
	LegacyUnassignedSuperUser bool

	// Upload limits in bytes. When set they take precedence over the
	// environment; zero keeps the storage setting.
	MaxUploadSize  int64
	MaxReplaceSize int64
}

// rulesFile is the YAML layout of the access rules file. Pointers tell a
// missing key from an empty one, so a listed selector replaces the default
// as a whole.
type rulesFile struct {
	GrowerRestricted          *filetypes.Selector `yaml:"grower_restricted_file_types"`
	CustomerExcluded          *filetypes.Selector `yaml:"customer_excluded_file_types"`
	LegacyUnassignedSuperUser *bool               `yaml:"legacy_unassigned_super_user"`
	Limits                    struct {
		MaxUploadSize  int64 `yaml:"max_upload_size"`
		MaxReplaceSize int64 `yaml:"max_replace_size"`
	} `yaml:"limits"`
}

// DefaultAccessRules returns the rules used without a rules file
func DefaultAccessRules() AccessRules {
	return AccessRules{
		Access:                    access.DefaultConfig(),
		LegacyUnassignedSuperUser: rbac.DefaultOptions().LegacyUnassignedSuperUser,
	}
}

// LoadAccessRules reads an access rules file. Keys that are absent keep
// their defaults.
func LoadAccessRules(path string) (*AccessRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read access rules: %w", err)
	}
	rules, err := ParseAccessRules(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse access rules %s: %w", path, err)
	}
	return rules, nil
}

// ParseAccessRules decodes access rules from YAML. Unknown keys are
// rejected so that a typo cannot silently widen access.
func ParseAccessRules(data []byte) (*AccessRules, error) {
	var file rulesFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	rules := DefaultAccessRules()
	if file.GrowerRestricted != nil {
		rules.Access.GrowerRestricted = *file.GrowerRestricted
	}
	if file.CustomerExcluded != nil {
		rules.Access.CustomerExcluded = *file.CustomerExcluded
	}
	if file.LegacyUnassignedSuperUser != nil {
		rules.LegacyUnassignedSuperUser = *file.LegacyUnassignedSuperUser
	}
	rules.MaxUploadSize = file.Limits.MaxUploadSize
	rules.MaxReplaceSize = file.Limits.MaxReplaceSize

	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &rules, nil
}

// Validate checks the selectors and limits
func (r AccessRules) Validate() error {
	for name, sel := range map[string]filetypes.Selector{
		"grower_restricted_file_types": r.Access.GrowerRestricted,
		"customer_excluded_file_types": r.Access.CustomerExcluded,
	} {
		for _, at := range sel.AttributeTypes {
			if _, err := models.ParseAttributeType(string(at)); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
	}
	if r.MaxUploadSize < 0 || r.MaxReplaceSize < 0 {
		return fmt.Errorf("upload limits cannot be negative")
	}
	return nil
}

func (r AccessRules) applyLimits(cfg *storage.Config) {
	if r.MaxUploadSize > 0 {
		cfg.MaxUploadSize = r.MaxUploadSize
	}
	if r.MaxReplaceSize > 0 {
		cfg.MaxReplaceSize = r.MaxReplaceSize
	}
}
