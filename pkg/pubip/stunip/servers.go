package stunip

// Public STUN servers. Order matters only for the first call,
// afterwards the last responding server is tried first.
var stunServers = []string{
	"stun.l.google.com:19302",
	"stun1.l.google.com:19302",
	"stun2.l.google.com:19302",
	"stun3.l.google.com:19302",
	"stun4.l.google.com:19302",
	"stun.cloudflare.com:3478",
	"stun.nextcloud.com:443",
	"stun.sipgate.net:3478",
	"stun.ekiga.net:3478",
}
