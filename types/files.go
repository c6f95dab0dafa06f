package types

// SourceFiles holds the two ordered collections enumerated from a source
// export root before the run starts.
type SourceFiles struct {
	// Metadata lists sidecar files (export_*.json and friends).
	Metadata []string
	// Content lists per-record content files, sorted by numeric name.
	Content []string
}

// Total returns the number of content records in the source set.
func (s SourceFiles) Total() int {
	return len(s.Content)
}

// ItemFiles describes the artifacts written for one exported item.
type ItemFiles struct {
	// Data is the primary artifact location, relative to the content root.
	Data string
	// Blobs lists the binary attachment locations written alongside.
	Blobs []string
}

// IndexEntry is one exported record in the consolidated index artifact.
type IndexEntry struct {
	UID  string
	Type string
	Path string
	Data string
}

// ItemReport is one audit row describing an item's path transformation.
// Rows are kept in insertion order, one per branch outcome.
type ItemReport struct {
	Filename string
	SrcPath  string
	SrcUID   string
	SrcType  string
	SrcState string
	DstPath  string
	DstUID   string
	DstType  string
	DstState string
	LastStep string
}
