// Package acl implements fine-grained, resource-scoped grants layered on
// top of workspace roles. A grant targets exactly one user or group and
// carries read or write, never admin.
package acl
