// Package config loads typed configuration structs from the environment.
//
// Each package owning external connectivity declares its own Config struct
// with env tags (see pkg/pg, pkg/redis, pkg/mongo, pkg/email) and the
// process entrypoint loads them through Load or MustLoad. A .env file in
// the working directory is honored in development and silently skipped in
// production.
package config
