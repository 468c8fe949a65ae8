// Package store routes hierarchical keys onto a partitioned, wide-column backend.
//
// Keyroute gives applications a get/set/delete record interface over
// slash-delimited keys while storing each record in a real table with a
// partition column and ordered cluster columns, so other clients can run
// efficient equality queries against the same data.
//
// # Keys
//
// Keys follow this format:
//
//	{table}/{partition}/{cluster_1}/.../{cluster_n}
//
// Each segment matches [A-Za-z0-9_-]+. A single-segment key lives in the
// default table ([Config.DefaultTable], "global"). With the default layout
// (pk, k1, k2, k3):
//
//	ryan                           global: pk='ryan' k1='' k2='' k3=''
//	user/ryan                      user:   pk='ryan' k1='' k2='' k3=''
//	user/ryan/settings/app2        user:   pk='ryan' k1='settings' k2='app2' k3=''
//	user/ryan/inbox/message/xxxxx  user:   pk='ryan' k1='inbox' k2='message' k3='xxxxx'
//
// Omitted cluster columns are pinned to the empty string, so a key always
// matches at most one row.
//
// # Overflow
//
// Keys deeper than the table are handled by [Config.Overflow]:
//
//   - [OverflowSpill] joins the surplus into the last column:
//     user/ryan/some/more/really/deep binds k3='really/deep'
//   - [OverflowReject] fails with [ErrClusterKeyOverflow]
//
// # Tables
//
// Tables are created on first use with [Config.DefaultColumns], or the spec
// registered for the table in [Config.Tables]. [Store.CreateTable] creates a
// table with an explicit spec. Resolved schemas are cached per Store for the
// life of the process.
//
// # Errors
//
//   - [ErrInvalidKey] - malformed key, never reaches the backend
//   - [ErrClusterKeyOverflow] - key deeper than the table (reject policy)
//   - [ErrCatalogUnavailable] - table metadata could not be read
//   - [ErrProvisioningFailed] - table creation failed or layouts disagree
//   - [ErrStoreWriteFailed], [ErrStoreReadFailed], [ErrStoreDeleteFailed]
//   - [ErrMultipleRecordsFound] - a fully bound key matched several rows
//
// A missing record is not an error: [Store.Fetch] returns nil, nil.
package store
