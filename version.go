package flowlike

// Version is the release of the engine. Overridden at build time with
// -ldflags "-X github.com/TM9657/flow-like-sub010.Version=...".
var Version = "0.4.0-dev"
