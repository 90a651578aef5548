/*
Package workers sizes cadventory's goroutine pools.

Pool sizes derive from runtime.GOMAXPROCS(0) rather than runtime.NumCPU(), so
container CPU limits are respected (Go 1.19+ sets GOMAXPROCS from the cgroup
quota).

	workers.ForMixed(4) // pipeline: 1.5 per CPU, at most 4
	workers.ForIO(8)    // audit checksums: 2 per CPU, at most 8

The geometry pipeline is mixed work: each worker mostly waits on a toolkit
subprocess, and the subprocess itself burns a CPU. The default cap of 4 keeps
a laptop usable while a large library is processed.

# Environment Variable Override

CADVENTORY_WORKERS overrides the computed value (still capped by the limit):

	CADVENTORY_WORKERS=2 cadventory process

An explicit worker count from configuration always wins; see Resolve.
*/
package workers
