package version

// Version is stamped at build time via -ldflags "-X .../version.Version=...".
var Version = "dev"
