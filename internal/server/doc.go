// Package server は、カメラエンティティをHTTPで公開します。
//
// このパッケージは、HTTPサーバーの起動、ルーティング、
// サービス呼び出しの受付、ストリームとイベントの配信を担当します。
//
// 責務:
//   - HTTPサーバーの起動と管理
//   - カメラ状態と静止画の提供
//   - MJPEGストリームの中継
//   - サービス呼び出し（set_config、スナップショット、録画、オン/オフ）の検証と配送
//   - カメラ状態の変化のSSE配信
//   - Prometheusメトリクスの公開
//
// 仕様:
//   - ルーティングはgin、入力検証はginのbinding（validator/v10）を使用
//   - イベント配信はr3labs/sseを使用
//   - グレースフルシャットダウンに対応
//   - 複数クライアントの同時接続をサポート
package server
