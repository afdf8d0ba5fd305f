// Package all links every built-in backend into the binary. Import it for
// side effects:
//
//	import _ "github.com/ironsheep/imgio/plugins/all"
//
// Programs that only need specific formats can import the individual plugin
// packages instead and skip the rest.
package all

import (
	_ "github.com/ironsheep/imgio/plugins/netpbm"
	_ "github.com/ironsheep/imgio/plugins/stdimage"
	_ "github.com/ironsheep/imgio/plugins/ximage"
)
