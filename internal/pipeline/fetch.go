package pipeline

import (
	"context"
	"errors"

	"github.com/seenimoa/panelstudy/internal/infra"
	"github.com/seenimoa/panelstudy/internal/provider"
)

// checkpointEvery is how many fetches happen between ledger saves.
const checkpointEvery = 25

// FetchStats counts how a fetch stage resolved its keys.
type FetchStats struct {
	Keys    int `yaml:"keys"`
	Fetched int `yaml:"fetched"`
	Cached  int `yaml:"cached"`
	Absent  int `yaml:"absent"`
	Pending int `yaml:"pending"`
}

// FetchAll resolves every key through the namespace's ledger. Done keys
// with a cached entry and absent keys are skipped. A fetched value is
// cached before the key is marked done; confirmed absence marks absent;
// anything else marks pending and the loop moves on.
//
// Cancellation stops the loop after saving the ledger, so the next run
// resumes at the first unresolved key.
func FetchAll[T any](ctx context.Context, env *Env, namespace string, keys []string,
	fetch func(ctx context.Context, key string) (*T, error)) (*FetchStats, error) {

	ledger, err := env.Ledger(namespace)
	if err != nil {
		return nil, err
	}
	log := env.Log.With().Str("namespace", namespace).Logger()
	stats := &FetchStats{Keys: len(keys)}
	sinceSave := 0

	for _, key := range keys {
		switch ledger.Status(key) {
		case infra.StatusAbsent:
			stats.Absent++
			continue
		case infra.StatusDone:
			if env.Cache.Has(namespace, key) {
				stats.Cached++
				continue
			}
		}
		if err := ctx.Err(); err != nil {
			return stats, errors.Join(err, ledger.Save())
		}

		v, err := fetch(ctx, key)
		if err != nil && ctx.Err() != nil {
			return stats, errors.Join(ctx.Err(), ledger.Save())
		}
		switch provider.Classify(err) {
		case provider.OutcomeDone:
			if err := env.Cache.Save(namespace, key, v); err != nil {
				return stats, errors.Join(err, ledger.Save())
			}
			ledger.MarkDone(key)
			stats.Fetched++
		case provider.OutcomeAbsent:
			ledger.MarkAbsent(key, err.Error())
			stats.Absent++
			log.Debug().Str("key", key).Err(err).Msg("no data")
		default:
			ledger.MarkPending(key, err)
			stats.Pending++
			log.Warn().Str("key", key).Err(err).Msg("fetch failed, will retry next run")
		}

		sinceSave++
		if sinceSave >= checkpointEvery {
			if err := ledger.Save(); err != nil {
				return stats, err
			}
			sinceSave = 0
		}
	}
	log.Info().
		Int("keys", stats.Keys).
		Int("fetched", stats.Fetched).
		Int("cached", stats.Cached).
		Int("absent", stats.Absent).
		Int("pending", stats.Pending).
		Msg("fetch complete")
	return stats, ledger.Save()
}

// LoadCached decodes the cached entries of keys whose ledger status is
// done. Keys without an entry are left out.
func LoadCached[T any](env *Env, namespace string, keys []string) (map[string]*T, error) {
	ledger, err := env.Ledger(namespace)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*T, len(keys))
	for _, key := range keys {
		if ledger.Status(key) != infra.StatusDone {
			continue
		}
		v := new(T)
		ok, err := env.Cache.Load(namespace, key, v)
		if err != nil {
			return nil, err
		}
		if ok {
			out[key] = v
		}
	}
	return out, nil
}

// hasPending reports whether the namespace ledger has pending keys.
func hasPending(env *Env, namespace string) bool {
	ledger, err := env.Ledger(namespace)
	if err != nil {
		return false
	}
	return len(ledger.Keys(infra.StatusPending)) > 0
}
