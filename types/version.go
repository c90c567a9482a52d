package types

// Version is the canonical svgswap version.
const Version = "0.3.0"
