package object

// References returns the ids obj points at: a commit's tree and parents, a
// tag's target and a tree's blob and subtree entries. Submodule entries name
// commits in other repositories and are skipped.
func References(obj Object) []ID {
	switch o := obj.(type) {
	case *Commit:
		refs := make([]ID, 0, 1+len(o.Parents))
		refs = append(refs, o.Tree)
		return append(refs, o.Parents...)
	case *Tag:
		return []ID{o.Target}
	case *Tree:
		refs := make([]ID, 0, len(o.Entries))
		for _, e := range o.Entries {
			if e.Kind() == KindSubmodule {
				continue
			}
			refs = append(refs, e.ID)
		}
		return refs
	default:
		return nil
	}
}
