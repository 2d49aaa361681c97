// Package resolvers provides the built-in Linux fact resolvers: kernel and
// operating system identification, memory, networking, processors, uptime,
// and identity. Each resolver translates OS interfaces (uname, sysinfo,
// /proc, /etc/os-release) into values of the fact algebra and registers
// with a facts.Collection at weight 0, so external resolutions can override
// any built-in fact with a positive weight.
package resolvers
