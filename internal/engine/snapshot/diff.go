package snapshot

import "sort"

type SignatureChange struct {
	Old FnFingerprint `json:"old"`
	New FnFingerprint `json:"new"`
}

// Diff lists what changed between two snapshots. Every slice is sorted by its
// key, so the result does not depend on fact order.
type Diff struct {
	AddedFunctions    []FnFingerprint     `json:"added_functions"`
	RemovedFunctions  []FnFingerprint     `json:"removed_functions"`
	ChangedSignatures []SignatureChange   `json:"changed_signatures"`
	AddedExports      []ExportFingerprint `json:"added_exports"`
	RemovedExports    []ExportFingerprint `json:"removed_exports"`
	AddedImports      []string            `json:"added_imports"`
	RemovedImports    []string            `json:"removed_imports"`
}

// Empty reports whether nothing changed.
func (d Diff) Empty() bool {
	return d.Changes() == 0
}

func (d Diff) Changes() int {
	return len(d.AddedFunctions) + len(d.RemovedFunctions) + len(d.ChangedSignatures) +
		len(d.AddedExports) + len(d.RemovedExports) +
		len(d.AddedImports) + len(d.RemovedImports)
}

type exportKey struct {
	as, source string
}

// Compare diffs old against updated. Functions are keyed by fq name and only a
// signature hash change counts as a change; moving a function does not. When
// an fq name repeats, its signature hashes are compared as a multiset.
// Exports are keyed by (exported name, source path).
func Compare(old, updated Snapshot) Diff {
	d := Diff{
		AddedFunctions:    []FnFingerprint{},
		RemovedFunctions:  []FnFingerprint{},
		ChangedSignatures: []SignatureChange{},
		AddedExports:      []ExportFingerprint{},
		RemovedExports:    []ExportFingerprint{},
		AddedImports:      []string{},
		RemovedImports:    []string{},
	}

	oldFns := functionsByName(old.Functions)
	newFns := functionsByName(updated.Functions)
	for fq, nfs := range newFns {
		ofs, ok := oldFns[fq]
		if !ok {
			d.AddedFunctions = append(d.AddedFunctions, nfs...)
			continue
		}
		removed, added := hashDifference(ofs, nfs)
		// Overloads sharing an fq name (trait impls for several types) are
		// paired in hash order; leftovers count as added or removed.
		n := min(len(removed), len(added))
		for i := 0; i < n; i++ {
			d.ChangedSignatures = append(d.ChangedSignatures, SignatureChange{Old: removed[i], New: added[i]})
		}
		d.RemovedFunctions = append(d.RemovedFunctions, removed[n:]...)
		d.AddedFunctions = append(d.AddedFunctions, added[n:]...)
	}
	for fq, ofs := range oldFns {
		if _, ok := newFns[fq]; !ok {
			d.RemovedFunctions = append(d.RemovedFunctions, ofs...)
		}
	}

	oldExports := exportsByKey(old.Exports)
	newExports := exportsByKey(updated.Exports)
	for k, e := range newExports {
		if _, ok := oldExports[k]; !ok {
			d.AddedExports = append(d.AddedExports, e)
		}
	}
	for k, e := range oldExports {
		if _, ok := newExports[k]; !ok {
			d.RemovedExports = append(d.RemovedExports, e)
		}
	}

	oldImports := stringSet(old.Imports)
	newImports := stringSet(updated.Imports)
	for p := range newImports {
		if _, ok := oldImports[p]; !ok {
			d.AddedImports = append(d.AddedImports, p)
		}
	}
	for p := range oldImports {
		if _, ok := newImports[p]; !ok {
			d.RemovedImports = append(d.RemovedImports, p)
		}
	}

	sortFns(d.AddedFunctions)
	sortFns(d.RemovedFunctions)
	sort.Slice(d.ChangedSignatures, func(i, j int) bool {
		a, b := d.ChangedSignatures[i], d.ChangedSignatures[j]
		if a.New.FQName != b.New.FQName {
			return a.New.FQName < b.New.FQName
		}
		return a.Old.SigHash < b.Old.SigHash
	})
	sortExports(d.AddedExports)
	sortExports(d.RemovedExports)
	sort.Strings(d.AddedImports)
	sort.Strings(d.RemovedImports)
	return d
}

// functionsByName groups fingerprints by fq name. Each group is sorted by
// signature hash so repeated names compare as multisets.
func functionsByName(fns []FnFingerprint) map[string][]FnFingerprint {
	out := make(map[string][]FnFingerprint, len(fns))
	for _, f := range fns {
		out[f.FQName] = append(out[f.FQName], f)
	}
	for _, group := range out {
		sortFns(group)
	}
	return out
}

// hashDifference returns the fingerprints of old whose hash has no partner in
// updated, and the reverse. Both inputs must be sorted by hash.
func hashDifference(old, updated []FnFingerprint) (removed, added []FnFingerprint) {
	i, j := 0, 0
	for i < len(old) && j < len(updated) {
		switch {
		case old[i].SigHash == updated[j].SigHash:
			i++
			j++
		case old[i].SigHash < updated[j].SigHash:
			removed = append(removed, old[i])
			i++
		default:
			added = append(added, updated[j])
			j++
		}
	}
	removed = append(removed, old[i:]...)
	added = append(added, updated[j:]...)
	return removed, added
}

func exportsByKey(exports []ExportFingerprint) map[exportKey]ExportFingerprint {
	out := make(map[exportKey]ExportFingerprint, len(exports))
	for _, e := range exports {
		k := exportKey{e.ExportedAs, e.SourcePath}
		if _, ok := out[k]; !ok {
			out[k] = e
		}
	}
	return out
}

func stringSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, s := range items {
		out[s] = struct{}{}
	}
	return out
}

func sortFns(fns []FnFingerprint) {
	sort.SliceStable(fns, func(i, j int) bool {
		if fns[i].FQName != fns[j].FQName {
			return fns[i].FQName < fns[j].FQName
		}
		if fns[i].SigHash != fns[j].SigHash {
			return fns[i].SigHash < fns[j].SigHash
		}
		return fns[i].Location.String() < fns[j].Location.String()
	})
}

func sortExports(exports []ExportFingerprint) {
	sort.Slice(exports, func(i, j int) bool {
		if exports[i].ExportedAs != exports[j].ExportedAs {
			return exports[i].ExportedAs < exports[j].ExportedAs
		}
		return exports[i].SourcePath < exports[j].SourcePath
	})
}
