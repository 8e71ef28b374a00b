package scm

import "strings"

// Classification is the result of inspecting a nixpkgs PR title
type Classification struct {
	IsPackageChange bool
	PackageName     string
	HasPackageName  bool
}

// Classify inspects a PR title of the form "<package>: <description>".
// Examples:
// "fastfetch-rs: init at 0.1.6" -> package change, "fastfetch-rs"
// "rundeck: 5.18.0 -> 5.19.0" -> package change, "rundeck"
// "nixos/nginx: add option" -> not a package change, "nixos/nginx"
// "Fix typo in readme" -> not a package change, no name
func Classify(title string) Classification {
	name, rest, found := strings.Cut(title, ":")
	if !found {
		return Classification{}
	}

	var c Classification
	if name = strings.TrimSpace(name); name != "" {
		c.PackageName = name
		c.HasPackageName = true
	}

	rest = strings.ToLower(strings.TrimSpace(rest))
	c.IsPackageChange = strings.Contains(rest, "init at") || strings.Contains(rest, "->")

	return c
}

// IsPackagePR reports whether the title announces a package init or version bump
func IsPackagePR(title string) bool {
	return Classify(title).IsPackageChange
}

// ExtractPackageName returns the text before the first colon, if any
func ExtractPackageName(title string) (string, bool) {
	c := Classify(title)
	return c.PackageName, c.HasPackageName
}
