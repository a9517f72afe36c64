package wtxmgr

import (
	"sort"

	"github.com/notesuite/notewallet/chain"
	"github.com/notesuite/notewallet/chainhash"
)

// UnlockJob schedules a balance recomputation for a container once the
// chain reaches the job's height.
type UnlockJob struct {
	Height    uint32
	Container chain.TransfersContainer
	Hash      chainhash.Hash
}

// EnqueueUnlockJob schedules an unlock at the given height.  A job already
// queued for the hash is left untouched; the hash view is unique.
func (s *Store) EnqueueUnlockJob(hash chainhash.Hash, height uint32,
	container chain.TransfersContainer) {

	if _, ok := s.unlockByHash[hash]; ok {
		return
	}

	i := sort.Search(len(s.unlockJobs), func(i int) bool {
		return s.unlockJobs[i].Height > height
	})
	s.unlockJobs = append(s.unlockJobs, UnlockJob{})
	copy(s.unlockJobs[i+1:], s.unlockJobs[i:])
	s.unlockJobs[i] = UnlockJob{Height: height, Container: container, Hash: hash}
	s.unlockByHash[hash] = struct{}{}
}

// DequeueUnlockJob drops the job queued for the given hash, if any.
func (s *Store) DequeueUnlockJob(hash chainhash.Hash) {
	if _, ok := s.unlockByHash[hash]; !ok {
		return
	}
	delete(s.unlockByHash, hash)

	for i, job := range s.unlockJobs {
		if job.Hash == hash {
			s.unlockJobs = append(s.unlockJobs[:i], s.unlockJobs[i+1:]...)
			break
		}
	}
}

// FlushUnlockJobs removes every job scheduled at or below height and returns
// the affected containers in schedule order, each container once.
func (s *Store) FlushUnlockJobs(height uint32) []chain.TransfersContainer {
	end := sort.Search(len(s.unlockJobs), func(i int) bool {
		return s.unlockJobs[i].Height > height
	})
	if end == 0 {
		return nil
	}

	seen := make(map[chain.TransfersContainer]struct{}, end)
	var containers []chain.TransfersContainer
	for _, job := range s.unlockJobs[:end] {
		delete(s.unlockByHash, job.Hash)
		if _, ok := seen[job.Container]; ok {
			continue
		}
		seen[job.Container] = struct{}{}
		containers = append(containers, job.Container)
	}

	s.unlockJobs = append(s.unlockJobs[:0], s.unlockJobs[end:]...)
	log.Debugf("Flushed %d unlock jobs up to height %d", end, height)
	return containers
}

// UnlockJobCount returns the number of queued unlock jobs.
func (s *Store) UnlockJobCount() int {
	return len(s.unlockJobs)
}

// HasUnlockJob reports whether a job is queued for the given hash.
func (s *Store) HasUnlockJob(hash chainhash.Hash) bool {
	_, ok := s.unlockByHash[hash]
	return ok
}

// UnlockJobs returns the queued jobs in schedule order.  The returned slice
// must not be mutated.
func (s *Store) UnlockJobs() []UnlockJob {
	return s.unlockJobs
}
