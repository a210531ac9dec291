package store

import (
	"context"
	"database/sql"
	"fmt"
)

// maintenanceDatabases are tried in order when the production database itself
// must not be connected to (dropping or template-cloning it).
var maintenanceDatabases = []string{"template1", "postgres", "template0"}

// CloneToWorking drops and recreates workingName as a template copy of this
// session's database. The session's own connection is closed first (a template
// source must have no other connections) and re-established before returning,
// whatever the outcome.
func (s *Session) CloneToWorking(ctx context.Context, workingName string) error {
	if workingName == "" || workingName == s.inst.Name {
		return fmt.Errorf("invalid working database name %q", workingName)
	}

	s.log.Info("closing session for template copy", "source", s.inst.Name)
	if err := s.Close(); err != nil {
		s.log.Warn("close before clone", "error", err.Error())
	}
	defer func() {
		if err := s.Reconnect(ctx); err != nil {
			s.log.Error("reconnect after clone failed", "error", err.Error())
		}
	}()

	maint, name, err := s.openMaintenance(ctx)
	if err != nil {
		return err
	}
	defer maint.Close()
	s.log.Info("connected to maintenance database", "database", name)

	if _, err := maint.ExecContext(ctx,
		fmt.Sprintf(`DROP DATABASE IF EXISTS %q`, workingName)); err != nil {
		return fmt.Errorf("drop working database: %w", err)
	}
	if _, err := maint.ExecContext(ctx,
		fmt.Sprintf(`CREATE DATABASE %q WITH TEMPLATE %q OWNER %q`,
			workingName, s.inst.Name, s.inst.User)); err != nil {
		return fmt.Errorf("create working database from template: %w", err)
	}
	s.log.Info("working copy created", "database", workingName, "template", s.inst.Name)
	return nil
}

func (s *Session) openMaintenance(ctx context.Context) (*sql.DB, string, error) {
	var lastErr error
	for _, name := range maintenanceDatabases {
		db, err := sql.Open("pgx", s.dsn(name))
		if err == nil {
			err = db.PingContext(ctx)
		}
		if err == nil {
			return db, name, nil
		}
		lastErr = err
		if db != nil {
			_ = db.Close()
		}
	}
	return nil, "", fmt.Errorf("no maintenance database reachable: %w", lastErr)
}
