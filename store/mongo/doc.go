// Package mongo implements store.Store using the MongoDB Go driver v2.
//
// Each lease is one document in jobhost_leases keyed by name. Lock changes
// are single-document conditional updates whose filters compare against
// the server clock ($$NOW), so instances with skewed clocks agree on
// expiry.
//
// The caller owns the database handle unless the store was opened with
// Open:
//
//	client, _ := mongod.Connect(options.Client().ApplyURI(uri))
//	s := mongo.New(client.Database("jobhost"))
//	s.Migrate(ctx)
package mongo
