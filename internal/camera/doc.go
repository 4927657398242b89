// Package camera Logi Circleカメラをホストのエンティティとして公開する
//
// # 責務
// - カメラエンティティ（LogiCam）の生成と登録
// - サービス呼び出しのターゲット解決と配送
// - ライブストリームのHTTPへの中継
// - 書き込み許可リストに基づくファイル保存の制御
// - 定期的な状態ポーリング
//
// # 使い分け
// このパッケージは以下の場合に使用する：
// - ベンダーSDKのカメラをホストのカメラとして扱いたい
// - set_config などのサービス呼び出しを複数カメラへ配送したい
// - トランスコーダーの出力をクライアントへそのまま流したい
//
// # 仕様
// - Device Handle: ベンダーSDK側のカメラ（このパッケージでは実装しない）
// - Transcoder: ffmpeg などの外部プロセス（このパッケージでは実装しない）
// - LogiCam: 1台分のアダプター。状態はキャッシュせず毎回ハンドルから読む
// - DefaultManager: 登録・配送・ポーリング
// - スナップショットと録画は呼び出し元のキャンセルから切り離して実行する
// - ストリーム中継はHTTPリクエストのコンテキストに従う
package camera
