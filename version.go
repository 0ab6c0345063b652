package foldlaunch

// Version is the current release of foldlaunch.
const Version = "0.2.0"
