package record_test

import (
    "fmt"

    "meshroof/pkg/record"
)

func Example_encode() {
    ssid, _ := record.ParseSSID("roofnet")
    cfg := record.Config{WifiSSID: ssid}
    r := record.Rosters{Admins: []record.Admin{{NodeID: 0xa1b2c3d4}}}

    blob, err := record.Encode(cfg, r, record.DefaultCapacity)
    if err != nil {
        fmt.Println(err)
        return
    }
    fmt.Println(len(blob))

    got, rosters, _ := record.Decode(blob, record.DefaultCapacity)
    fmt.Println(got.WifiSSID, rosters.Admins[0].NodeID, got.DHCP())

    // Output:
    // 212
    // roofnet !a1b2c3d4 true
}
