/*
Package capabilities models what a worker advertises to the scheduler:
numeric amounts (vcpu, memory, gpu count) and string-set attributes (os
family, cpu architecture, pool membership).

Capabilities are immutable; composing host-detected capabilities with
operator overrides is done with Merge, which is right-biased per key and
replaces whole values (an attribute override replaces the tag set, it does
not union into it). Serialization for the control plane preserves
insertion order so repeated heartbeats carry a byte-stable payload.
*/
package capabilities
