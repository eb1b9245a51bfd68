// Package resources implements the typed resource vectors advertised by an
// agent and consumed by tasks: named scalars (cpus, mem), integer range sets
// (ports) and labelled sets. Vectors support commutative addition and
// subtraction and a textual form like "cpus:4;mem:8192;ports:[31000-32000]".
package resources
