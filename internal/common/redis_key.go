package common

// RedisKeyListingReservations is a sorted set of payment_pending listing ids
// scored by the unix time their reservation expires.
const RedisKeyListingReservations = "marketplace:reservations"
