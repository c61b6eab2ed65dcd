package refs

import (
	"fmt"
	"strings"

	"github.com/odvcencio/gitcenter/pkg/object"
)

// ValidateName checks name against Git's ref naming rules. Names must be
// HEAD, another all-caps pseudo ref, or live under refs/.
func ValidateName(name string) error {
	if err := checkName(name); err != nil {
		return object.NewError(object.ErrFormat, "validate ref", name, err)
	}
	return nil
}

func checkName(name string) error {
	if name == "" {
		return fmt.Errorf("ref name is required")
	}
	if !strings.HasPrefix(name, "refs/") && !isPseudoRef(name) {
		return fmt.Errorf("ref must be HEAD or start with refs/")
	}
	if strings.HasSuffix(name, "/") || strings.HasSuffix(name, ".") {
		return fmt.Errorf("ref cannot end with %q", name[len(name)-1:])
	}
	if strings.Contains(name, "..") || strings.Contains(name, "@{") || strings.Contains(name, "//") {
		return fmt.Errorf("ref contains a forbidden sequence")
	}
	if name == "@" {
		return fmt.Errorf("ref cannot be @")
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < 0x20 || c == 0x7f || strings.IndexByte(" ~^:?*[\\", c) >= 0 {
			return fmt.Errorf("ref contains forbidden character %q", c)
		}
	}
	for _, component := range strings.Split(name, "/") {
		if strings.HasPrefix(component, ".") {
			return fmt.Errorf("ref component %q starts with a dot", component)
		}
		if strings.HasSuffix(component, ".lock") {
			return fmt.Errorf("ref component %q ends with .lock", component)
		}
	}
	return nil
}

// isPseudoRef matches top-level names such as HEAD or ORIG_HEAD.
func isPseudoRef(name string) bool {
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c < 'A' || c > 'Z') && c != '_' {
			return false
		}
	}
	return true
}

// BranchRef returns the full ref name of a branch.
func BranchRef(branch string) string {
	return "refs/heads/" + strings.TrimPrefix(branch, "refs/heads/")
}

// TagRef returns the full ref name of a tag.
func TagRef(tag string) string {
	return "refs/tags/" + strings.TrimPrefix(tag, "refs/tags/")
}
