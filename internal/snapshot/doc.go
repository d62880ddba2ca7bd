// Package snapshot captures and restores hive subtrees for tunectl.
//
// Every snapshot is one self-contained artifact file: the full export of a
// key's subtree plus the metadata needed to restore it from any later
// process. Artifacts accumulate per key rather than overwriting, so prior
// states remain restorable until pruned.
//
// # Artifact Layout
//
// Artifacts live flat in one directory, named to encode the capture time and
// key:
//
//	~/.local/share/tunectl/snapshots/
//	├── 20260312T141502-system~kernel~sched.tweaksnap
//	├── 20260312T141502-system~vm.tweaksnap
//	└── 20260315T090144-system~kernel~sched.tweaksnap
//
// The filename exists for uniqueness and human association only; the
// captured-at time embedded in the artifact JSON is the ordering authority
// for [Manager.RestoreLatest].
//
// # Capturing
//
// Use [Manager.Capture] before mutating a key:
//
//	mgr := snapshot.NewManager(store, snapshot.WithDir(dir))
//	h, err := mgr.Capture(key)
//	if errors.Is(err, snapshot.ErrKeyMissing) {
//	    // key doesn't exist yet; nothing to snapshot, proceed
//	}
//
// Capturing a nonexistent key never creates it.
//
// # Restoring
//
// [Manager.Restore] re-imports a captured subtree in full, replacing the
// key's current subtree. The restore is deliberately coarse grained: values
// written to the same subtree after the capture, related to the mutation or
// not, revert along with it. Restoring the same handle twice converges to
// the same state.
//
// [Manager.RestoreLatest] picks the newest artifact for a key; a key with no
// artifacts reports [ErrNoSnapshot].
//
// # Integrity
//
// Each artifact carries the SHA256 of its encoded subtree. A mismatch at
// restore time reports [ErrCorrupted] and leaves the hive untouched.
//
// # Retention
//
// [Manager.Prune] drops artifacts beyond the newest N per key.
package snapshot
