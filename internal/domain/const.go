package domain

import "time"

// ManifestTTL is the fixed expiration applied to every cache write of a
// manifest record. Records are never deleted; they lapse.
const ManifestTTL = 604800 * time.Second
