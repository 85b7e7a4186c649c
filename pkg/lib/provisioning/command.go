package provisioning

import (
	"fmt"
	"maps"
	"slices"

	"github.com/organicnz/rustsible-gui/pkg/lib/runner"
)

// BuildCommand validates s and assembles the ansible-playbook invocation.
func BuildCommand(s Settings) (runner.Spec, error) {
	s = s.Normalize()
	if err := s.Validate(); err != nil {
		return runner.Spec{}, err
	}
	keyPath, err := s.ResolveKeyPath()
	if err != nil {
		return runner.Spec{}, err
	}

	dir := s.WorkDir
	if dir == "" {
		dir, err = FindRepoRoot(s.Playbook)
		if err != nil {
			return runner.Spec{}, fmt.Errorf("find working directory: %w", err)
		}
	}

	exe := s.Executable
	if exe == "" {
		exe = DefaultExecutable
	}

	args := []string{s.Playbook}
	extra := func(k, v string) {
		args = append(args, "-e", k+"="+v)
	}
	extra("target_ip", s.Host)
	extra("target_user", s.User)
	extra("ssh_key_path", keyPath)
	if s.Hostname != "" {
		extra("target_hostname", s.Hostname)
	}
	for _, k := range slices.Sorted(maps.Keys(s.Features)) {
		extra(k, yesNo(s.Features[k]))
	}
	for _, k := range slices.Sorted(maps.Keys(s.Vars)) {
		extra(k, s.Vars[k])
	}

	return runner.Spec{
		Path: exe,
		Args: args,
		Dir:  dir,
		Env:  []string{"ANSIBLE_NOCOLOR=1", "ANSIBLE_FORCE_COLOR=0"},
	}, nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
