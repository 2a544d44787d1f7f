package access

// Module is a named resource category used as the permission-grant key.
type Module string

const (
	ModuleAgencies        Module = "agencies"
	ModuleProperties      Module = "properties"
	ModuleLeads           Module = "leads"
	ModuleUsers           Module = "users"
	ModuleCMS             Module = "cms"
	ModuleSettings        Module = "settings"
	ModuleAnalytics       Module = "analytics"
	ModulePermissions     Module = "permissions"
	ModuleInquiries       Module = "inquiries"
	ModuleContactMessages Module = "contact_messages"
)

// Action is one of the four permission verbs.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// Modules enumerates every known module.
func Modules() []Module {
	return []Module{
		ModuleAgencies,
		ModuleProperties,
		ModuleLeads,
		ModuleUsers,
		ModuleCMS,
		ModuleSettings,
		ModuleAnalytics,
		ModulePermissions,
		ModuleInquiries,
		ModuleContactMessages,
	}
}

func isValidModule(m Module) bool {
	switch m {
	case ModuleAgencies, ModuleProperties, ModuleLeads, ModuleUsers, ModuleCMS,
		ModuleSettings, ModuleAnalytics, ModulePermissions, ModuleInquiries, ModuleContactMessages:
		return true
	}
	return false
}

func isValidAction(a Action) bool {
	switch a {
	case ActionView, ActionCreate, ActionEdit, ActionDelete:
		return true
	}
	return false
}
