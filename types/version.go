package types

// Version is the transmute release version.
// Set here rather than via ldflags so library consumers see it too.
const Version = "1.0.0"

// IndexVersion is the version tag written into the consolidated index
// artifact (__metadata__.json).
const IndexVersion = "1.0.0"
