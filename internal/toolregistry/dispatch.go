package toolregistry

// Policy restricts which tools a given conversation turn may see, combining
// category-scoped defaults with explicit name allow/deny lists. Deny always
// wins over allow, same as internal/tools/policy.Policy's precedence rule.
type Policy struct {
	AllowCategories []Category
	Allow           []string
	Deny            []string
}

func (p Policy) allowsCategory(cat Category) bool {
	if len(p.AllowCategories) == 0 {
		return true
	}
	for _, c := range p.AllowCategories {
		if c == cat {
			return true
		}
	}
	return false
}

func contains(list []string, name string) bool {
	for _, n := range list {
		if n == name {
			return true
		}
	}
	return false
}

// FilterByPolicy returns the subset of tools a Policy permits, applied by
// the gateway before a tool list is sent to any provider dialect.
func FilterByPolicy(policy Policy, tools []Tool) []Tool {
	filtered := make([]Tool, 0, len(tools))
	for _, tool := range tools {
		if contains(policy.Deny, tool.Name()) {
			continue
		}
		if !policy.allowsCategory(tool.Category()) {
			continue
		}
		if len(policy.Allow) > 0 && !contains(policy.Allow, tool.Name()) {
			continue
		}
		filtered = append(filtered, tool)
	}
	return filtered
}
