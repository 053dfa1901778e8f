package dataddo

// Version is the library version reported in the User-Agent header.
const Version = "0.4.0"

// UserAgent identifies this client to the API.
const UserAgent = "dataddo-puller/" + Version
