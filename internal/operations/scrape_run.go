package operations

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// RunScrape executes every enabled search, inserts the results, and lets the
// guard decide on the post-acquisition backup. One search's failure never
// aborts the rest of the batch.
func (o *Operator) RunScrape() error {
	scraper, err := o.newScraper()
	if err != nil {
		return err
	}

	searches := o.cfg.Scrape.EnabledSearches()
	if len(searches) == 0 {
		o.log.Warn("no enabled searches configured")
		return nil
	}

	totalNew := 0
	for _, search := range searches {
		params := make(map[string]any, len(search.Parameters)+len(o.cfg.Scrape.Global))
		for k, v := range search.Parameters {
			params[k] = v
		}
		for k, v := range o.cfg.Scrape.Global {
			if _, set := params[k]; !set {
				params[k] = v
			}
		}

		o.log.Info("starting search", "name", search.Name)
		batch, err := scraper.Search(o.ctx, params)
		if err != nil {
			o.log.Error("search failed", "name", search.Name, "error", err.Error())
			continue
		}

		if err := o.session.EnsureConnection(o.ctx); err != nil {
			return err
		}
		if err := o.session.LogSearch(o.ctx, search.Name, params, len(batch)); err != nil {
			o.log.Warn("could not log search", "name", search.Name, "error", err.Error())
		}
		inserted, err := o.session.InsertJobs(o.ctx, batch, search.Name)
		if err != nil {
			o.log.Error("insert failed", "name", search.Name, "error", err.Error())
			continue
		}
		totalNew += inserted
		o.log.Info("search completed", "name", search.Name, "found", len(batch), "new", inserted)
	}

	o.guard.AfterScrape(totalNew)
	return nil
}

// RunSchedule runs the scrape pipeline on the given cron expression until the
// context is cancelled.
func (o *Operator) RunSchedule(spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if err := o.RunScrape(); err != nil {
			o.log.Error("scheduled scrape failed", "error", err.Error())
		}
	}); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}

	o.log.Info("scrape schedule started", "spec", spec)
	c.Start()
	<-o.ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	return nil
}
