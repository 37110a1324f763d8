package nexus

import (
	"errors"
	"fmt"

	"github.com/Aman-CERP/artifactidx/internal/artifact"
	"github.com/Aman-CERP/artifactidx/internal/config"
	"github.com/Aman-CERP/artifactidx/internal/index"
)

// LoadContexts registers every context and merged context of cfg. On
// failure the contexts registered so far are removed again.
func (n *Indexer) LoadContexts(cfg *config.Config) (err error) {
	var added []string
	defer func() {
		if err == nil {
			return
		}
		for _, id := range added {
			err = errors.Join(err, n.RemoveContext(id, false))
		}
	}()

	for _, cc := range cfg.Contexts {
		var creators []artifact.Creator
		if len(cc.Creators) > 0 {
			creators, err = artifact.CreatorsByID(cc.Creators)
			if err != nil {
				return fmt.Errorf("context %s: %w", cc.ID, err)
			}
		}
		ic := index.Config{
			ID:             cc.ID,
			RepositoryID:   cc.RepositoryID,
			Repository:     cc.Repository,
			IndexDir:       cfg.IndexDir(cc),
			RepositoryURL:  cc.RepositoryURL,
			IndexUpdateURL: cc.IndexUpdateURL,
			Creators:       creators,
			Searchable:     cc.IsSearchable(),
		}
		add := n.AddContext
		if cc.Forced {
			add = n.AddContextForced
		}
		if _, err = add(ic); err != nil {
			return err
		}
		added = append(added, cc.ID)
	}

	for _, mc := range cfg.Merged {
		var members index.MemberProvider
		if mc.Dynamic() {
			members = index.MemberFunc(n.AllIndexingContexts)
		} else {
			ids := append([]string(nil), mc.Members...)
			members = index.MemberFunc(func() []index.Context {
				out := make([]index.Context, 0, len(ids))
				for _, id := range ids {
					if c, ok := n.registry.Get(id); ok {
						out = append(out, c)
					}
				}
				return out
			})
		}
		if _, err = n.AddMergedContext(index.MergedConfig{
			ID:           mc.ID,
			RepositoryID: mc.RepositoryID,
			Repository:   mc.Repository,
			Members:      members,
			Searchable:   mc.IsSearchable(),
		}); err != nil {
			return err
		}
		added = append(added, mc.ID)
	}
	return nil
}
