package reconcile

import (
	"sort"
	"strings"
)

// ActionKind is what to do with one conflicting column.
type ActionKind int

const (
	ActionOverwrite ActionKind = iota
	ActionRename
	ActionSkip
)

func (k ActionKind) String() string {
	switch k {
	case ActionOverwrite:
		return "OVERWRITE"
	case ActionRename:
		return "RENAME"
	case ActionSkip:
		return "SKIP"
	default:
		return "UNKNOWN"
	}
}

// Action is the decision for one column. NewName is only used by RENAME.
type Action struct {
	Kind    ActionKind
	NewName string
}

// Overwrite replaces the existing column's type and content with the
// incoming column's.
func Overwrite() Action { return Action{Kind: ActionOverwrite} }

// Rename loads the incoming column under name, leaving the existing column
// untouched.
func Rename(name string) Action { return Action{Kind: ActionRename, NewName: name} }

// Skip drops the incoming column's data.
func Skip() Action { return Action{Kind: ActionSkip} }

func (a Action) String() string {
	if a.Kind == ActionRename {
		return "RENAME(" + a.NewName + ")"
	}
	return a.Kind.String()
}

// Decision maps incoming column names to actions.
type Decision map[string]Action

// resolve validates decision against diff and returns the actions keyed by
// the diff entry name. Only conflicting entries appear in the result.
func resolve(diff Diff, decision Decision) (map[string]Action, error) {
	keys := make([]string, 0, len(decision))
	for k := range decision {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	byEntry := make(map[string]Action, len(decision))
	for _, k := range keys {
		e, ok := diff.Entry(k)
		if !ok {
			return nil, invalid(k, "not present in the diff")
		}
		if !e.Conflict() {
			continue
		}
		if _, dup := byEntry[e.Name]; dup {
			return nil, invalid(k, "decided more than once")
		}
		byEntry[e.Name] = decision[k]
	}

	targets := make(map[string]string)
	for _, e := range diff.Conflicts() {
		a, ok := byEntry[e.Name]
		if !ok {
			return nil, invalid(e.Name, "no decision for %s column", e.Status)
		}
		switch a.Kind {
		case ActionOverwrite, ActionSkip:
		case ActionRename:
			name := strings.TrimSpace(a.NewName)
			if name == "" {
				return nil, invalid(e.Name, "rename target is empty")
			}
			if _, taken := diff.Entry(name); taken {
				return nil, invalid(e.Name, "rename target %q collides with an existing column", name)
			}
			if other, taken := targets[strings.ToLower(name)]; taken {
				return nil, invalid(e.Name, "rename target %q already used by %q", name, other)
			}
			targets[strings.ToLower(name)] = e.Name
			a.NewName = name
			byEntry[e.Name] = a
		default:
			return nil, invalid(e.Name, "unknown action %d", int(a.Kind))
		}
	}
	return byEntry, nil
}

// ApplyDecision turns a decision into the ordered schema mutations the
// database layer must execute. Mutations follow diff order, so the same
// diff and decision always produce the same plan.
func ApplyDecision(diff Diff, decision Decision) ([]Mutation, error) {
	actions, err := resolve(diff, decision)
	if err != nil {
		return nil, err
	}

	var muts []Mutation
	for _, e := range diff.Conflicts() {
		a := actions[e.Name]
		typ := e.Incoming.DataType.Storable()
		switch a.Kind {
		case ActionOverwrite:
			if e.Status == New {
				muts = append(muts, Mutation{Kind: AddColumn, Column: e.Incoming.Name, Type: typ})
				continue
			}
			if typ == e.Existing.DataType {
				continue
			}
			muts = append(muts, Mutation{
				Kind:   ChangeType,
				Column: e.Existing.Name,
				Type:   typ,
				From:   e.Existing.DataType,
			})
		case ActionRename:
			muts = append(muts, Mutation{Kind: AddColumn, Column: a.NewName, Type: typ})
		case ActionSkip:
		}
	}
	return muts, nil
}

// Targets maps each incoming column that will be loaded to the table column
// receiving its data. Skipped columns are absent from the map.
func Targets(diff Diff, decision Decision) (map[string]string, error) {
	actions, err := resolve(diff, decision)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string)
	for _, e := range diff.Entries {
		switch e.Status {
		case MissingFromSource:
			continue
		case Matches:
			out[e.Incoming.Name] = e.Existing.Name
		case New, TypeMismatch:
			a := actions[e.Name]
			switch a.Kind {
			case ActionOverwrite:
				if e.Existing != nil {
					out[e.Incoming.Name] = e.Existing.Name
				} else {
					out[e.Incoming.Name] = e.Incoming.Name
				}
			case ActionRename:
				out[e.Incoming.Name] = a.NewName
			}
		}
	}
	return out, nil
}

// Uniform returns a decision applying the same action to every conflict in
// diff. For RENAME, each column is renamed to its name plus suffix.
func Uniform(diff Diff, kind ActionKind, suffix string) Decision {
	d := make(Decision)
	for _, e := range diff.Conflicts() {
		switch kind {
		case ActionRename:
			d[e.Name] = Rename(e.Name + suffix)
		default:
			d[e.Name] = Action{Kind: kind}
		}
	}
	return d
}
