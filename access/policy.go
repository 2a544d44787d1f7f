package access

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"estateflow/auth"
)

// Policy is the role-default permission table. It is loaded once at process
// start and read-only afterwards; per-scope overrides live in the grant
// store, not here.
type Policy struct {
	roles map[auth.Role]map[Module]map[Action]bool
}

// Allows reports the role default for (role, module, action). Absence of an
// entry means deny.
func (p *Policy) Allows(role auth.Role, module Module, action Action) bool {
	if p == nil {
		return false
	}
	modules, ok := p.roles[role]
	if !ok {
		return false
	}
	actions, ok := modules[module]
	if !ok {
		return false
	}
	return actions[action]
}

func newPolicy() *Policy {
	return &Policy{roles: make(map[auth.Role]map[Module]map[Action]bool)}
}

func (p *Policy) allow(role auth.Role, module Module, actions ...Action) {
	modules, ok := p.roles[role]
	if !ok {
		modules = make(map[Module]map[Action]bool)
		p.roles[role] = modules
	}
	set, ok := modules[module]
	if !ok {
		set = make(map[Action]bool, 4)
		modules[module] = set
	}
	for _, a := range actions {
		set[a] = true
	}
}

var allActions = []Action{ActionView, ActionCreate, ActionEdit, ActionDelete}

// DefaultPolicy returns the built-in role-default table.
func DefaultPolicy() *Policy {
	p := newPolicy()

	for _, m := range Modules() {
		p.allow(auth.RoleSuperAdmin, m, allActions...)
	}

	// Staff operate across agencies but never touch settings or the
	// permission table.
	p.allow(auth.RoleStaff, ModuleAgencies, ActionView)
	p.allow(auth.RoleStaff, ModuleProperties, ActionView, ActionCreate, ActionEdit)
	p.allow(auth.RoleStaff, ModuleLeads, ActionView, ActionCreate, ActionEdit)
	p.allow(auth.RoleStaff, ModuleUsers, ActionView)
	p.allow(auth.RoleStaff, ModuleCMS, ActionView, ActionEdit)
	p.allow(auth.RoleStaff, ModuleAnalytics, ActionView)
	p.allow(auth.RoleStaff, ModuleInquiries, ActionView, ActionEdit)
	p.allow(auth.RoleStaff, ModuleContactMessages, ActionView, ActionEdit)

	p.allow(auth.RoleAgencyAdmin, ModuleAgencies, ActionView)
	p.allow(auth.RoleAgencyAdmin, ModuleProperties, allActions...)
	p.allow(auth.RoleAgencyAdmin, ModuleLeads, allActions...)
	p.allow(auth.RoleAgencyAdmin, ModuleUsers, ActionView, ActionCreate, ActionEdit)
	p.allow(auth.RoleAgencyAdmin, ModuleAnalytics, ActionView)
	p.allow(auth.RoleAgencyAdmin, ModuleInquiries, ActionView, ActionEdit)

	p.allow(auth.RoleAgent, ModuleProperties, ActionView, ActionCreate, ActionEdit)
	p.allow(auth.RoleAgent, ModuleLeads, ActionView, ActionEdit)
	p.allow(auth.RoleAgent, ModuleInquiries, ActionView)

	// Customers reach customer-facing modules only.
	p.allow(auth.RoleCustomer, ModuleProperties, ActionView)
	p.allow(auth.RoleCustomer, ModuleInquiries, ActionView, ActionCreate)
	p.allow(auth.RoleCustomer, ModuleContactMessages, ActionCreate)

	return p
}

type policyFile struct {
	Roles map[string]map[string][]string `yaml:"roles"`
}

// LoadPolicy reads a role-default table from a YAML file. The file replaces
// the built-in defaults entirely; callers wanting the defaults pass no file.
func LoadPolicy(path string) (*Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("access: read policy: %w", err)
	}

	var pf policyFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return nil, fmt.Errorf("access: parse policy: %w", err)
	}

	p := newPolicy()
	for roleName, modules := range pf.Roles {
		role := auth.Role(roleName)
		for moduleName, actions := range modules {
			module := Module(moduleName)
			if !isValidModule(module) {
				return nil, fmt.Errorf("access: policy role %s: unknown module %q", roleName, moduleName)
			}
			for _, actionName := range actions {
				action := Action(actionName)
				if !isValidAction(action) {
					return nil, fmt.Errorf("access: policy role %s module %s: unknown action %q", roleName, moduleName, actionName)
				}
				p.allow(role, module, action)
			}
		}
	}
	return p, nil
}
