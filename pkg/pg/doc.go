// Package pg connects to PostgreSQL through a pgx/v5 pool, applies goose
// migrations and classifies driver errors.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, migrations.FS, cfg, log); err != nil {
//		return err
//	}
//
// Healthcheck returns a probe suitable for readiness endpoints.
package pg
