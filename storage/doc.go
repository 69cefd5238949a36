// Package storage is the persistence engine: it owns the table of live
// entities, serialises the whole table as one JSON document, and rebuilds
// typed entities from that document through a Registry of factories.
//
// The engine never inspects entity fields. It relies on the Object
// contract (Kind, ID, ToRecord) on the way out and on a registered Factory
// on the way in. Adding an entity kind means adding one Registry entry.
//
// # Snapshot format
//
// A snapshot is a single JSON object keyed by "{Kind}.{ID}". Each value is
// a record carrying a "__class__" type tag plus the entity's own fields:
//
//	{
//	  "BaseModel.0190f3b2-...": {
//	    "__class__": "BaseModel",
//	    "created_at": "2024-07-01T09:30:00.123456",
//	    "id": "0190f3b2-...",
//	    "updated_at": "2024-07-01T09:31:12.000001"
//	  }
//	}
//
// Keys are written in sorted order with two-space indentation, so saving
// an unchanged table twice yields identical bytes.
//
// # Errors
//
// Save failures are always returned. Reload absorbs the recoverable
// conditions (ErrSnapshotMissing, ErrSnapshotCorrupt) after logging them
// and leaves the table untouched; Load is the strict variant that returns
// them. A record that fails reconstruction aborts the whole load with a
// *DeserializationError wrapped in ErrSnapshotCorrupt.
package storage
