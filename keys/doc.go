// Package keys owns the single-table key scheme.
//
// Every entity shares one DynamoDB keyspace. The entity type is encoded in the
// key prefix rather than in a schema field, so this package is the only place
// allowed to spell a prefix:
//
//	User      PK=USER#{id}                SK=USER#{id}
//	Post      PK=USER#{authorId}          SK=POST#{id}
//	Comment   PK=COMMENT#[shard]          SK=COMMENT#{id}
//	Follow    PK=FOLLOWERID#{followerId}  SK=FOLLOWINGID#{followingId}
//	UserEmail PK=USER_EMAIL#{fingerprint} SK=USER_EMAIL#{fingerprint}
//
// [Codec.Build] also returns the secondary-index attributes for the entity.
// They are derived copies of key fields and are written on every put, so the
// indexes cannot drift from the primary item.
//
// The scheme must stay stable: changing a prefix without a migration orphans
// every stored item.
package keys
