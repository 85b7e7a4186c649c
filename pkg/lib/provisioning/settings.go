// Package provisioning holds the settings of a provisioning run and turns them
// into an ansible-playbook invocation.
package provisioning

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/organicnz/rustsible-gui/pkg/lib"
)

const (
	DefaultExecutable = "ansible-playbook"
	DefaultPlaybook   = "playbook.yml"
	DefaultUser       = "root"
)

// Settings is everything a run needs. It is persisted by Store.
type Settings struct {
	// Host is the address of the server to provision.
	Host string `yaml:"host" json:"host" validate:"required"`
	// User is the remote account ansible connects as.
	User string `yaml:"user" json:"user" validate:"required"`
	// KeyPath is the private key file. A leading "~/" is expanded.
	KeyPath string `yaml:"key_path" json:"key_path" validate:"required"`
	// Hostname is set on the provisioned server when not empty.
	Hostname string `yaml:"hostname,omitempty" json:"hostname,omitempty" validate:"omitempty,hostname_rfc1123"`
	// Playbook is relative to WorkDir.
	Playbook string `yaml:"playbook" json:"playbook" validate:"required"`
	// WorkDir is where ansible-playbook runs. Empty means the repository
	// root found by FindRepoRoot.
	WorkDir string `yaml:"workdir,omitempty" json:"workdir,omitempty"`
	// Executable overrides the ansible-playbook binary.
	Executable string `yaml:"executable,omitempty" json:"executable,omitempty"`
	// Features are yes/no toggles passed as extra vars.
	Features map[string]bool `yaml:"features,omitempty" json:"features,omitempty" validate:"dive,keys,varname,endkeys"`
	// Vars are passed verbatim as extra vars.
	Vars map[string]string `yaml:"vars,omitempty" json:"vars,omitempty" validate:"dive,keys,varname,endkeys"`
}

// DefaultSettings mirrors a fresh install: root user, the default RSA key and
// the common toggles switched on.
func DefaultSettings() Settings {
	s := Settings{
		User:     DefaultUser,
		KeyPath:  "~/.ssh/id_rsa",
		Playbook: DefaultPlaybook,
		Features: map[string]bool{
			"prompt_create_user":            true,
			"prompt_install_docker":         true,
			"prompt_install_lemp":           false,
			"prompt_install_wordpress":      false,
			"prompt_install_certbot":        false,
			"prompt_install_dev_tools":      true,
			"prompt_install_neovim":         true,
			"prompt_install_nodejs":         true,
			"prompt_install_tmux":           true,
			"prompt_install_zsh":            true,
			"prompt_enable_fail2ban":        true,
			"prompt_enable_swap":            true,
			"prompt_enable_cron_jobs":       true,
			"prompt_enable_periodic_reboot": false,
		},
		Vars: map[string]string{
			"prompt_reboot_hour": "3",
		},
	}
	return s
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their settings file name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("varname", func(fl validator.FieldLevel) bool {
		return isVarName(fl.Field().String())
	})
	return v
}

func isVarName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// Normalize trims surrounding whitespace from the free-text fields.
func (s Settings) Normalize() Settings {
	s.Host = strings.TrimSpace(s.Host)
	s.User = strings.TrimSpace(s.User)
	s.KeyPath = strings.TrimSpace(s.KeyPath)
	s.Hostname = strings.TrimSpace(s.Hostname)
	s.Playbook = strings.TrimSpace(s.Playbook)
	s.WorkDir = strings.TrimSpace(s.WorkDir)
	return s
}

// Validate checks the settings and that the key file exists. Failures are
// *lib.InvalidConfigError naming the offending field.
func (s Settings) Validate() error {
	s = s.Normalize()
	if err := validate.Struct(s); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &lib.InvalidConfigError{Field: fieldName(fe), Reason: reason(fe)}
		}
		return &lib.InvalidConfigError{Field: "settings", Reason: err.Error()}
	}
	_, err := s.ResolveKeyPath()
	return err
}

func fieldName(fe validator.FieldError) string {
	// Namespace is "Settings.features[key]"; drop the struct name.
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "hostname_rfc1123":
		return fmt.Sprintf("%q is not a valid hostname", fe.Value())
	case "varname":
		return fmt.Sprintf("%q is not a valid variable name", fe.Value())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// ResolveKeyPath expands a leading "~/" and checks that the key file exists.
func (s Settings) ResolveKeyPath() (string, error) {
	path := strings.TrimSpace(s.KeyPath)
	if path == "" {
		return "", &lib.InvalidConfigError{Field: "key_path", Reason: "is required"}
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", &lib.InvalidConfigError{Field: "key_path", Reason: fmt.Sprintf("cannot expand ~: %v", err)}
		}
		path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", &lib.InvalidConfigError{Field: "key_path", Reason: fmt.Sprintf("key not found: %s", path)}
	}
	if info.IsDir() {
		return "", &lib.InvalidConfigError{Field: "key_path", Reason: fmt.Sprintf("%s is a directory", path)}
	}
	return path, nil
}
